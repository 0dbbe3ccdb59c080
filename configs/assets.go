package configs

import (
	_ "embed"
	"strings"
)

//go:embed config.yaml
var ConfigFile string

//go:embed prefetch_blacklist.lst
var prefetchBlacklist string

// PrefetchBlacklist hosts whose usage policy forbids bulk downloads
func PrefetchBlacklist() []string {
	cleanStr := strings.ReplaceAll(prefetchBlacklist, "\r", "")
	lines := make([]string, 0)
	for _, l := range strings.Split(cleanStr, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// IsBlacklisted checks if the url points to a blacklisted host
func IsBlacklisted(url string) bool {
	u := strings.ToLower(url)
	for _, b := range PrefetchBlacklist() {
		if strings.Contains(u, strings.ToLower(b)) {
			return true
		}
	}
	return false
}

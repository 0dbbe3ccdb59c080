package config

import "fmt"

// set by the build with -ldflags "-X ..."
var (
	version = "0.1.0"
	commit  = "dev"
)

type Version struct {
	Version string
	Commit  string
}

func NewVersion() *Version {
	return &Version{
		Version: version,
		Commit:  commit,
	}
}

func (v Version) String() string {
	return fmt.Sprintf("go_argenmap v%s (%s)", v.Version, v.Commit)
}

package fileutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPathName(t *testing.T) {
	ast := assert.New(t)
	tt := []struct {
		name string
		in   string
		exp  string
	}{
		{"plain", "argenmap", "argenmap"},
		{"dots", "../etc", "___etc"},
		{"escaped", "a%2Fb", "a_b"},
		{"newline", "a\nb", "ab"},
		{"colon", "c:\\tiles", "c__tiles"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ast.Equal(tc.exp, ValidPathName(tc.in))
		})
	}
}

func TestFiles(t *testing.T) {
	ast := assert.New(t)
	dir := t.TempDir()
	fn := filepath.Join(dir, "5.png")
	ast.False(FileExists(fn))
	ast.NoError(os.WriteFile(fn, []byte("png"), 0o644))
	ast.True(FileExists(fn))
	ast.False(IsDir(fn))
	ast.True(IsDir(dir))
	ast.Equal("5", FileNameWithoutExtension("5.png"))
	ast.Equal("5", FileNameWithoutExtension("5"))
}

// Package cache locates game cache directories on the local machine for the
// CLI, so runefs can be pointed at an installed client without flags.
package cache

import (
	"os"
	"path/filepath"

	"github.com/runetools/runefs"
)

// candidateDirs are the cache locations the stock client writes to,
// relative to the user's home directory.
var candidateDirs = []string{
	filepath.Join("jagexcache", "oldschool", "LIVE"),
	filepath.Join("jagexcache", "runescape", "LIVE"),
	".jagex_cache_32",
}

// Discover returns the first directory that looks like a cache: it must
// contain the data file. The explicit path wins when non-empty; an empty
// string is returned when nothing is found.
func Discover(explicit string) string {
	if explicit != "" {
		return explicit
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, dir := range candidateDirs {
		path := filepath.Join(home, dir)
		if IsCacheDir(path) {
			return path
		}
	}
	return ""
}

// IsCacheDir reports whether dir contains a cache data file.
func IsCacheDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, runefs.DataFileName))
	return err == nil && !info.IsDir()
}

package global

import (
	"os"
	"path/filepath"
)

var (
	defaultDir = filepath.Join(os.Getenv("HOME"), ".cache", "lfs-station")
)

// FlashDir returns the directory partitions are laid out in, either
// configured or defaulted to $HOME/.cache/lfs-station.
func FlashDir() string {
	if Conf.Directory != "" {
		return Conf.Directory
	}

	// $HOME may be empty in minimal containers, which would make the default
	// relative to the working directory.
	if !filepath.IsAbs(defaultDir) {
		return filepath.Join(os.TempDir(), "lfs-station")
	}
	return defaultDir
}

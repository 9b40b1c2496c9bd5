package fs

import (
	"context"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/ctfer-io/lfs-station/global"
	errs "github.com/ctfer-io/lfs-station/pkg/errors"
)

const (
	superblockFile = "superblock.json"
	dataSubdir     = "data"

	superblockMagic   = "littlefs"
	superblockVersion = 1
)

// clean validates an absolute slash-delimited path and returns both its
// canonical form and its form relative to the mount root, as billy expects.
func clean(p string) (abs, rel string, err error) {
	if !strings.HasPrefix(p, "/") {
		return "", "", &errs.ErrValidationFailed{Reason: "path " + p + " is not absolute"}
	}
	abs = path.Clean(p)
	rel = strings.TrimPrefix(abs, "/")
	if rel == "" {
		rel = "."
	}
	return abs, rel, nil
}

func fclose(ctx context.Context, f billy.File) {
	if err := f.Close(); err != nil {
		global.Log().Error(ctx, "failed to close file",
			zap.String("file", f.Name()),
			zap.Error(err),
		)
	}
}

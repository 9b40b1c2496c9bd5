package fs

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ctfer-io/lfs-station/global"
)

// WriteNested writes msg to a file, first creating every missing parent
// directory when the file does not exist yet. Failures to create a parent
// are ignored (it may already exist), the final write reports them anyway.
func (m *Mount) WriteNested(ctx context.Context, fpath, msg string) (created []string, err error) {
	abs, _, err := clean(fpath)
	if err != nil {
		return nil, err
	}

	if !m.Exists(abs) {
		logger := global.Log()
		parts := strings.Split(strings.TrimPrefix(abs, "/"), "/")
		dir := "/"
		for _, part := range parts[:len(parts)-1] {
			dir = path.Join(dir, part)
			if err := m.Mkdir(ctx, dir); err != nil {
				logger.Debug(ctx, "skipping parent directory",
					zap.String("path", dir),
					zap.Error(err),
				)
				continue
			}
			created = append(created, dir)
		}
	}

	return created, m.WriteFile(ctx, abs, msg)
}

// DeleteNested removes a file then its parent directories, walking upward.
// The walk stops at the first directory that cannot be removed, which is
// the first non-empty one: it and all its ancestors are kept.
// A failure to remove the file itself is returned, but does not prevent
// the walk.
func (m *Mount) DeleteNested(ctx context.Context, fpath string) (removed []string, err error) {
	abs, _, err := clean(fpath)
	if err != nil {
		return nil, err
	}

	err = m.Delete(ctx, abs)

	logger := global.Log()
	for dir := path.Dir(abs); dir != "/"; dir = path.Dir(dir) {
		if rerr := m.Rmdir(ctx, dir); rerr != nil {
			logger.Debug(ctx, "stop removing parent directories",
				zap.String("path", dir),
				zap.Error(rerr),
			)
			break
		}
		removed = append(removed, dir)
	}
	return removed, err
}

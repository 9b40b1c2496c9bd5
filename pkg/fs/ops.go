package fs

import (
	"context"
	"io"
	"os"
	"path"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	errs "github.com/ctfer-io/lfs-station/pkg/errors"
)

// Entry is a file or directory met while listing a directory.
type Entry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
	// Depth is 0 for entries of the listed directory, 1 for entries of its
	// sub-directories, and so on.
	Depth int `json:"depth"`
}

// Exists reports whether a path resolves.
func (m *Mount) Exists(p string) bool {
	if m.check() != nil {
		return false
	}
	_, rel, err := clean(p)
	if err != nil {
		return false
	}
	_, err = m.data.Stat(rel)
	return err == nil
}

// stat returns the file info of a path, normalizing the not-exist case.
func (m *Mount) stat(abs, rel string) (os.FileInfo, error) {
	fi, err := m.data.Stat(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &errs.ErrPathExist{Path: abs, Exist: false}
		}
		return nil, err
	}
	return fi, nil
}

// requireParent ensures the parent directory of a path exists, as the
// underlying billy implementations would create it silently otherwise.
func (m *Mount) requireParent(abs string) error {
	dir := path.Dir(abs)
	_, rel, _ := clean(dir)
	fi, err := m.stat(dir, rel)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errs.ErrNotDirectory
	}
	return nil
}

// ListDir lists the entries of a directory, recursing into sub-directories
// as long as levels is positive. Entries of a sub-directory follow it.
func (m *Mount) ListDir(ctx context.Context, dir string, levels int) (entries []Entry, err error) {
	defer func() { record(ctx, "list", err) }()

	if err := m.check(); err != nil {
		return nil, err
	}
	abs, rel, err := clean(dir)
	if err != nil {
		return nil, err
	}
	fi, err := m.stat(abs, rel)
	if err != nil {
		return nil, &errs.ErrFilesystem{Op: "list", Path: abs, Err: err}
	}
	if !fi.IsDir() {
		return nil, &errs.ErrFilesystem{Op: "list", Path: abs, Err: errs.ErrNotDirectory}
	}
	if err := m.list(abs, rel, levels, 0, &entries); err != nil {
		return nil, &errs.ErrFilesystem{Op: "list", Path: abs, Err: err}
	}
	return entries, nil
}

func (m *Mount) list(abs, rel string, levels, depth int, entries *[]Entry) error {
	fis, err := m.data.ReadDir(rel)
	if err != nil {
		return err
	}
	sort.Slice(fis, func(i, j int) bool { return fis[i].Name() < fis[j].Name() })

	for _, fi := range fis {
		e := Entry{
			Path:  path.Join(abs, fi.Name()),
			IsDir: fi.IsDir(),
			Depth: depth,
		}
		if !fi.IsDir() {
			e.Size = fi.Size()
		}
		*entries = append(*entries, e)

		if fi.IsDir() && levels > 0 {
			if err := m.list(e.Path, m.data.Join(rel, fi.Name()), levels-1, depth+1, entries); err != nil {
				return err
			}
		}
	}
	return nil
}

// Mkdir creates a single directory. Its parent must exist.
func (m *Mount) Mkdir(ctx context.Context, dir string) (err error) {
	defer func() { record(ctx, "mkdir", err) }()

	if err := m.check(); err != nil {
		return err
	}
	abs, rel, err := clean(dir)
	if err != nil {
		return err
	}
	if _, err := m.data.Stat(rel); err == nil {
		return &errs.ErrFilesystem{Op: "mkdir", Path: abs, Err: &errs.ErrPathExist{Path: abs, Exist: true}}
	}
	if err := m.requireParent(abs); err != nil {
		return &errs.ErrFilesystem{Op: "mkdir", Path: abs, Err: err}
	}
	if err := m.data.MkdirAll(rel, 0o755); err != nil {
		return &errs.ErrFilesystem{Op: "mkdir", Path: abs, Err: err}
	}
	return nil
}

// Rmdir removes an empty directory.
func (m *Mount) Rmdir(ctx context.Context, dir string) (err error) {
	defer func() { record(ctx, "rmdir", err) }()

	if err := m.check(); err != nil {
		return err
	}
	abs, rel, err := clean(dir)
	if err != nil {
		return err
	}
	if rel == "." {
		return &errs.ErrFilesystem{Op: "rmdir", Path: abs, Err: &errs.ErrValidationFailed{Reason: "cannot remove the mount root"}}
	}
	fi, err := m.stat(abs, rel)
	if err != nil {
		return &errs.ErrFilesystem{Op: "rmdir", Path: abs, Err: err}
	}
	if !fi.IsDir() {
		return &errs.ErrFilesystem{Op: "rmdir", Path: abs, Err: errs.ErrNotDirectory}
	}
	if err := m.data.Remove(rel); err != nil {
		return &errs.ErrFilesystem{Op: "rmdir", Path: abs, Err: err}
	}
	return nil
}

// ReadFile returns the content of a file.
func (m *Mount) ReadFile(ctx context.Context, fpath string) (b []byte, err error) {
	defer func() { record(ctx, "read", err) }()

	if err := m.check(); err != nil {
		return nil, err
	}
	abs, rel, err := clean(fpath)
	if err != nil {
		return nil, err
	}
	fi, err := m.stat(abs, rel)
	if err != nil {
		return nil, &errs.ErrFilesystem{Op: "read", Path: abs, Err: err}
	}
	if fi.IsDir() {
		return nil, &errs.ErrFilesystem{Op: "read", Path: abs, Err: errs.ErrIsDirectory}
	}

	f, err := m.openFile(rel, os.O_RDONLY, 0)
	if err != nil {
		return nil, &errs.ErrFilesystem{Op: "read", Path: abs, Err: err}
	}
	defer fclose(ctx, f)

	b, err = io.ReadAll(f)
	if err != nil {
		return nil, &errs.ErrFilesystem{Op: "read", Path: abs, Err: err}
	}
	return b, nil
}

// WriteFile creates or truncates a file and writes msg to it.
func (m *Mount) WriteFile(ctx context.Context, fpath, msg string) (err error) {
	defer func() { record(ctx, "write", err) }()
	return m.write(ctx, "write", fpath, msg, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// AppendFile appends msg to a file, creating it if necessary.
func (m *Mount) AppendFile(ctx context.Context, fpath, msg string) (err error) {
	defer func() { record(ctx, "append", err) }()
	return m.write(ctx, "append", fpath, msg, os.O_WRONLY|os.O_CREATE|os.O_APPEND)
}

func (m *Mount) write(_ context.Context, op, fpath, msg string, flag int) error {
	if err := m.check(); err != nil {
		return err
	}
	abs, rel, err := clean(fpath)
	if err != nil {
		return err
	}
	if fi, err := m.data.Stat(rel); err == nil && fi.IsDir() {
		return &errs.ErrFilesystem{Op: op, Path: abs, Err: errs.ErrIsDirectory}
	}
	if err := m.requireParent(abs); err != nil {
		return &errs.ErrFilesystem{Op: op, Path: abs, Err: err}
	}

	f, err := m.openFile(rel, flag, 0o644)
	if err != nil {
		return &errs.ErrFilesystem{Op: op, Path: abs, Err: err}
	}
	_, err = io.WriteString(f, msg)
	if err = multierr.Combine(err, f.Close()); err != nil {
		return &errs.ErrFilesystem{Op: op, Path: abs, Err: err}
	}
	return nil
}

// Rename moves a file or directory. The old name no longer resolves
// afterwards.
func (m *Mount) Rename(ctx context.Context, from, to string) (err error) {
	defer func() { record(ctx, "rename", err) }()

	if err := m.check(); err != nil {
		return err
	}
	absFrom, relFrom, err := clean(from)
	if err != nil {
		return err
	}
	absTo, relTo, err := clean(to)
	if err != nil {
		return err
	}
	if _, err := m.stat(absFrom, relFrom); err != nil {
		return &errs.ErrFilesystem{Op: "rename", Path: absFrom, Err: err}
	}
	if err := m.requireParent(absTo); err != nil {
		return &errs.ErrFilesystem{Op: "rename", Path: absTo, Err: err}
	}
	if err := m.data.Rename(relFrom, relTo); err != nil {
		return &errs.ErrFilesystem{Op: "rename", Path: absFrom, Err: err}
	}
	return nil
}

// Delete removes a file. Directories are removed with Rmdir.
func (m *Mount) Delete(ctx context.Context, fpath string) (err error) {
	defer func() { record(ctx, "delete", err) }()

	if err := m.check(); err != nil {
		return err
	}
	abs, rel, err := clean(fpath)
	if err != nil {
		return err
	}
	fi, err := m.stat(abs, rel)
	if err != nil {
		return &errs.ErrFilesystem{Op: "delete", Path: abs, Err: err}
	}
	if fi.IsDir() {
		return &errs.ErrFilesystem{Op: "delete", Path: abs, Err: errs.ErrIsDirectory}
	}
	if err := m.data.Remove(rel); err != nil {
		return &errs.ErrFilesystem{Op: "delete", Path: abs, Err: err}
	}
	return nil
}

// Open opens a file for reading. The caller must close it, as it counts
// against the maximum number of open files until then.
func (m *Mount) Open(ctx context.Context, fpath string) (f io.ReadCloser, err error) {
	defer func() { record(ctx, "open", err) }()

	if err := m.check(); err != nil {
		return nil, err
	}
	abs, rel, err := clean(fpath)
	if err != nil {
		return nil, err
	}
	fi, err := m.stat(abs, rel)
	if err != nil {
		return nil, &errs.ErrFilesystem{Op: "open", Path: abs, Err: err}
	}
	if fi.IsDir() {
		return nil, &errs.ErrFilesystem{Op: "open", Path: abs, Err: errs.ErrIsDirectory}
	}
	bf, err := m.openFile(rel, os.O_RDONLY, 0)
	if err != nil {
		return nil, &errs.ErrFilesystem{Op: "open", Path: abs, Err: err}
	}
	return bf, nil
}

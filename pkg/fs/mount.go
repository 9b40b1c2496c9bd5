package fs

import (
	"context"
	"os"
	"sync"

	"github.com/go-git/go-billy/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ctfer-io/lfs-station/global"
	errs "github.com/ctfer-io/lfs-station/pkg/errors"
	"github.com/ctfer-io/lfs-station/pkg/lock"
)

// Mount is a mounted partition. It is the only way to reach the data region
// of a partition, and is owned by whoever mounted it until Unmount.
type Mount struct {
	Partition  Partition
	Superblock *Superblock

	data billy.Filesystem
	lock lock.Lock

	mx      sync.Mutex
	open    int
	mounted bool
}

// MountOptions configures how a partition gets mounted.
type MountOptions struct {
	// FormatIfFailed formats the partition when its superblock cannot be
	// read, rather than failing the mount.
	FormatIfFailed bool
}

// MountPartition mounts the partition p of the flash.
// It fails if the partition is already mounted, or if its superblock is
// unreadable and formatting is not allowed.
func MountPartition(ctx context.Context, flash Flash, p Partition, opts MountOptions) (m *Mount, err error) {
	ctx = global.WithPartition(ctx, p.Label)
	logger := global.Log()
	defer func() { record(ctx, "mount", err) }()

	l := lock.NewLocalLock(flash.Key() + "/" + p.Name)
	if err := l.TryLock(ctx); err != nil {
		return nil, &errs.ErrMount{Label: p.Label, Sub: err}
	}
	// From now on, release the lock on any failure
	defer func() {
		if err != nil {
			err = multierr.Append(err, l.Unlock(ctx))
		}
	}()

	raw, err := flash.Partition(p)
	if err != nil {
		return nil, &errs.ErrMount{Label: p.Label, Sub: err}
	}

	sb, err := readSuperblock(raw, p)
	if err != nil {
		if !opts.FormatIfFailed {
			return nil, &errs.ErrMount{Label: p.Label, Sub: err}
		}
		logger.Warn(ctx, "superblock unreadable, formatting partition",
			zap.Error(err),
		)
		if err := flash.Reserve(p); err != nil {
			return nil, &errs.ErrMount{Label: p.Label, Sub: err}
		}
		sb, err = format(raw, p)
		if err != nil {
			return nil, &errs.ErrMount{Label: p.Label, Sub: err}
		}
	}

	data, err := raw.Chroot(dataSubdir)
	if err != nil {
		return nil, &errs.ErrMount{Label: p.Label, Sub: err}
	}

	logger.Debug(ctx, "partition mounted",
		zap.String("name", p.Name),
		zap.Time("formatted_at", sb.FormattedAt),
	)
	return &Mount{
		Partition:  p,
		Superblock: sb,
		data:       data,
		lock:       l,
		mounted:    true,
	}, nil
}

// Format wipes the partition p of the flash and writes a fresh superblock.
// It fails if the partition is mounted.
func Format(ctx context.Context, flash Flash, p Partition) (sb *Superblock, err error) {
	ctx = global.WithPartition(ctx, p.Label)
	defer func() { record(ctx, "format", err) }()

	l := lock.NewLocalLock(flash.Key() + "/" + p.Name)
	if err := l.TryLock(ctx); err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, l.Unlock(ctx))
	}()

	if err := flash.Reserve(p); err != nil {
		return nil, err
	}
	raw, err := flash.Partition(p)
	if err != nil {
		return nil, err
	}
	sb, err = format(raw, p)
	if err != nil {
		return nil, err
	}

	global.Log().Info(ctx, "partition formatted",
		zap.String("name", p.Name),
	)
	return sb, nil
}

// Unmount releases the partition. It fails if files are still open.
// Unmounting an already unmounted partition is a no-op.
func (m *Mount) Unmount(ctx context.Context) (err error) {
	ctx = global.WithPartition(ctx, m.Partition.Label)
	defer func() { record(ctx, "unmount", err) }()

	m.mx.Lock()
	defer m.mx.Unlock()

	if !m.mounted {
		return nil
	}
	if m.open != 0 {
		return &errs.ErrFilesystem{Op: "unmount", Path: m.Partition.Label, Err: errs.ErrLockUnavailable}
	}
	m.mounted = false
	return m.lock.Unlock(ctx)
}

// Mounted reports whether the partition is still mounted.
func (m *Mount) Mounted() bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.mounted
}

// OpenFiles returns the number of currently open files.
func (m *Mount) OpenFiles() int {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.open
}

// Usage reports the number of bytes used by files in the data region, and
// the capacity of the partition (0 if unbounded).
func (m *Mount) Usage(ctx context.Context) (used, total int64, err error) {
	if err := m.check(); err != nil {
		return 0, 0, err
	}
	used, err = m.du(".")
	if err != nil {
		return 0, 0, &errs.ErrFilesystem{Op: "usage", Path: "/", Err: err}
	}
	return used, m.Partition.Size, nil
}

func (m *Mount) du(rel string) (int64, error) {
	entries, err := m.data.ReadDir(rel)
	if err != nil {
		return 0, err
	}
	var sum int64
	for _, e := range entries {
		if e.IsDir() {
			sub, err := m.du(m.data.Join(rel, e.Name()))
			if err != nil {
				return 0, err
			}
			sum += sub
			continue
		}
		sum += e.Size()
	}
	return sum, nil
}

func (m *Mount) check() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if !m.mounted {
		return errs.ErrUnmounted
	}
	return nil
}

// openFile opens a file of the data region, accounting for the maximum
// number of simultaneously open files.
func (m *Mount) openFile(rel string, flag int, perm os.FileMode) (billy.File, error) {
	m.mx.Lock()
	defer m.mx.Unlock()

	if !m.mounted {
		return nil, errs.ErrUnmounted
	}
	if m.open >= m.Partition.MaxFiles {
		return nil, errs.ErrTooManyOpenFiles
	}
	f, err := m.data.OpenFile(rel, flag, perm)
	if err != nil {
		return nil, err
	}
	m.open++
	return &handle{File: f, m: m}, nil
}

type handle struct {
	billy.File
	m    *Mount
	once sync.Once
}

func (h *handle) Close() error {
	err := h.File.Close()
	h.once.Do(func() {
		h.m.mx.Lock()
		h.m.open--
		h.m.mx.Unlock()
	})
	return err
}

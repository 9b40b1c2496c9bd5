package fs_test

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/ctfer-io/lfs-station/pkg/errors"
	"github.com/ctfer-io/lfs-station/pkg/fs"
)

func Test_U_MountFormat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flash := fs.NewMemFlash()
	p := testPartition()

	// A blank partition has no superblock, so it does not mount as is
	_, err := fs.MountPartition(ctx, flash, p, fs.MountOptions{})
	var merr *errs.ErrMount
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, p.Label, merr.Label)

	// ... unless formatting is allowed
	m, err := fs.MountPartition(ctx, flash, p, fs.MountOptions{FormatIfFailed: true})
	require.NoError(t, err)
	assert.Equal(t, "spiffs", m.Superblock.Name)
	assert.Equal(t, "/littlefs", m.Superblock.Label)
	assert.True(t, m.Mounted())
	require.NoError(t, m.WriteFile(ctx, "/kept.txt", "kept"))
	require.NoError(t, m.Unmount(ctx))
	assert.False(t, m.Mounted())

	// Once formatted, it mounts without formatting and keeps its content
	m, err = fs.MountPartition(ctx, flash, p, fs.MountOptions{})
	require.NoError(t, err)
	b, err := m.ReadFile(ctx, "/kept.txt")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(b))
	require.NoError(t, m.Unmount(ctx))

	// Unmount is idempotent, but operations are refused afterwards
	require.NoError(t, m.Unmount(ctx))
	_, err = m.ReadFile(ctx, "/kept.txt")
	assert.ErrorIs(t, err, errs.ErrUnmounted)
}

func Test_U_MountTwice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flash := fs.NewMemFlash()
	p := testPartition()

	m, err := fs.MountPartition(ctx, flash, p, fs.MountOptions{FormatIfFailed: true})
	require.NoError(t, err)

	_, err = fs.MountPartition(ctx, flash, p, fs.MountOptions{FormatIfFailed: true})
	assert.ErrorIs(t, err, errs.ErrLockUnavailable)

	// Another flash does not collide
	other, err := fs.MountPartition(ctx, fs.NewMemFlash(), p, fs.MountOptions{FormatIfFailed: true})
	require.NoError(t, err)
	require.NoError(t, other.Unmount(ctx))

	require.NoError(t, m.Unmount(ctx))
	m, err = fs.MountPartition(ctx, flash, p, fs.MountOptions{})
	require.NoError(t, err)
	require.NoError(t, m.Unmount(ctx))
}

func Test_U_MountCorrupted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flash := fs.NewMemFlash()
	p := testPartition()

	m, err := fs.MountPartition(ctx, flash, p, fs.MountOptions{FormatIfFailed: true})
	require.NoError(t, err)
	require.NoError(t, m.WriteFile(ctx, "/lost.txt", "lost"))
	require.NoError(t, m.Unmount(ctx))

	raw, err := flash.Partition(p)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(raw, "superblock.json", []byte("not json"), 0o644))

	_, err = fs.MountPartition(ctx, flash, p, fs.MountOptions{})
	var merr *errs.ErrMount
	require.ErrorAs(t, err, &merr)

	// Formatting wipes previous content
	m, err = fs.MountPartition(ctx, flash, p, fs.MountOptions{FormatIfFailed: true})
	require.NoError(t, err)
	assert.False(t, m.Exists("/lost.txt"))
	require.NoError(t, m.Unmount(ctx))
}

func Test_U_MaxFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p := testPartition()
	p.MaxFiles = 1

	m, err := fs.MountPartition(ctx, fs.NewMemFlash(), p, fs.MountOptions{FormatIfFailed: true})
	require.NoError(t, err)
	require.NoError(t, m.WriteFile(ctx, "/a.txt", "a"))

	f, err := m.Open(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, m.OpenFiles())

	_, err = m.ReadFile(ctx, "/a.txt")
	assert.ErrorIs(t, err, errs.ErrTooManyOpenFiles)

	// Cannot unmount while a file is open
	assert.Error(t, m.Unmount(ctx))
	assert.True(t, m.Mounted())

	require.NoError(t, f.Close())
	_ = f.Close() // closing twice does not underflow
	assert.Equal(t, 0, m.OpenFiles())

	_, err = m.ReadFile(ctx, "/a.txt")
	require.NoError(t, err)
	require.NoError(t, m.Unmount(ctx))
}

func Test_U_Usage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := mount(t)

	require.NoError(t, m.Mkdir(ctx, "/dir"))
	require.NoError(t, m.WriteFile(ctx, "/dir/a.txt", "12345"))
	require.NoError(t, m.WriteFile(ctx, "/b.txt", "123"))

	used, total, err := m.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), used)
	assert.Equal(t, int64(0x160000), total)
}

func Test_U_Format(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	flash := fs.NewMemFlash()
	p := testPartition()

	sb, err := fs.Format(ctx, flash, p)
	require.NoError(t, err)
	assert.Equal(t, p.Name, sb.Name)

	m, err := fs.MountPartition(ctx, flash, p, fs.MountOptions{})
	require.NoError(t, err)
	require.NoError(t, m.WriteFile(ctx, "/wiped.txt", "wiped"))

	// A mounted partition can't be formatted
	_, err = fs.Format(ctx, flash, p)
	assert.ErrorIs(t, err, errs.ErrLockUnavailable)
	require.NoError(t, m.Unmount(ctx))

	_, err = fs.Format(ctx, flash, p)
	require.NoError(t, err)

	m, err = fs.MountPartition(ctx, flash, p, fs.MountOptions{})
	require.NoError(t, err)
	assert.False(t, m.Exists("/wiped.txt"))
	require.NoError(t, m.Unmount(ctx))
}

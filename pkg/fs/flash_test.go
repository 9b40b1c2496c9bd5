package fs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfer-io/lfs-station/pkg/fs"
)

func Test_U_OSFlash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	flash, err := fs.NewOSFlash(dir)
	require.NoError(t, err)
	p := testPartition()

	m, err := fs.MountPartition(ctx, flash, p, fs.MountOptions{FormatIfFailed: true})
	require.NoError(t, err)
	require.NoError(t, m.WriteFile(ctx, "/hello.txt", "Hello"))

	// The implicit parent creation of the host filesystem must not leak
	assert.Error(t, m.WriteFile(ctx, "/a/b.txt", "x"))
	require.NoError(t, m.Unmount(ctx))

	// Layout is <dir>/<partition>/{superblock.json,data/}
	_, err = os.Stat(filepath.Join(dir, "spiffs", "superblock.json"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "spiffs", "data", "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(b))
	_, err = os.Stat(filepath.Join(dir, "spiffs", "data", "a"))
	assert.True(t, os.IsNotExist(err))

	// Content persists across mounts
	m, err = fs.MountPartition(ctx, flash, p, fs.MountOptions{})
	require.NoError(t, err)
	b, err = m.ReadFile(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(b))
	require.NoError(t, m.Unmount(ctx))
}

func Test_U_OSFlashReserve(t *testing.T) {
	t.Parallel()

	flash, err := fs.NewOSFlash(t.TempDir())
	require.NoError(t, err)

	// No host volume offers an exabyte
	assert.Error(t, flash.Reserve(fs.Partition{Name: "huge", Size: 1 << 60}))
	assert.NoError(t, flash.Reserve(fs.Partition{Name: "unbounded"}))

	_, err = fs.MountPartition(context.Background(), flash, fs.Partition{
		Name:     "huge",
		Label:    "/huge",
		MaxFiles: 1,
		Size:     1 << 60,
	}, fs.MountOptions{FormatIfFailed: true})
	assert.Error(t, err)
}

func Test_U_NewFlash(t *testing.T) {
	t.Parallel()

	var tests = map[string]struct {
		Backend   string
		ExpectErr bool
	}{
		"os": {
			Backend: fs.BackendOS,
		},
		"mem": {
			Backend: fs.BackendMem,
		},
		"unknown": {
			Backend:   "nand",
			ExpectErr: true,
		},
	}

	for testname, tt := range tests {
		t.Run(testname, func(t *testing.T) {
			t.Parallel()

			flash, err := fs.NewFlash(tt.Backend, t.TempDir())
			if tt.ExpectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, flash.Key())
		})
	}
}

package fs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ctfer-io/lfs-station/pkg/fs"
)

func testPartition() fs.Partition {
	return fs.Partition{
		Name:     "spiffs",
		Label:    "/littlefs",
		MaxFiles: fs.DefaultMaxFiles,
		Size:     0x160000,
	}
}

// mount returns a freshly formatted in-memory partition, unmounted at
// test cleanup.
func mount(t *testing.T) *fs.Mount {
	t.Helper()

	m, err := fs.MountPartition(context.Background(), fs.NewMemFlash(), testPartition(), fs.MountOptions{
		FormatIfFailed: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Unmount(context.Background())
	})
	return m
}

package fs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/ctfer-io/lfs-station/pkg/errors"
	"github.com/ctfer-io/lfs-station/pkg/fs"
)

func Test_U_WriteAppendRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := mount(t)

	require.NoError(t, m.WriteFile(ctx, "/hello.txt", "Hello "))
	require.NoError(t, m.AppendFile(ctx, "/hello.txt", "World!\r\n"))
	b, err := m.ReadFile(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello World!\r\n", string(b))

	// Write truncates
	require.NoError(t, m.WriteFile(ctx, "/hello.txt", "Hi"))
	b, err = m.ReadFile(ctx, "/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hi", string(b))

	// Append creates missing files
	require.NoError(t, m.AppendFile(ctx, "/hello0.txt", "World0!\r\n"))
	b, err = m.ReadFile(ctx, "/hello0.txt")
	require.NoError(t, err)
	assert.Equal(t, "World0!\r\n", string(b))
}

func Test_U_Rename(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := mount(t)

	require.NoError(t, m.WriteFile(ctx, "/hello.txt", "Hello World!\r\n"))
	require.NoError(t, m.Rename(ctx, "/hello.txt", "/foo.txt"))

	b, err := m.ReadFile(ctx, "/foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello World!\r\n", string(b))
	assert.False(t, m.Exists("/hello.txt"))

	_, err = m.ReadFile(ctx, "/hello.txt")
	var perr *errs.ErrPathExist
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Exist)

	// Renaming into a missing directory does not create it
	err = m.Rename(ctx, "/foo.txt", "/missing/foo.txt")
	assert.Error(t, err)
	assert.True(t, m.Exists("/foo.txt"))
	assert.False(t, m.Exists("/missing"))
}

func Test_U_DirOps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := mount(t)

	require.NoError(t, m.Mkdir(ctx, "/mydir"))
	require.NoError(t, m.WriteFile(ctx, "/mydir/hello2.txt", "Hello2"))

	entries, err := m.ListDir(ctx, "/", 1)
	require.NoError(t, err)
	assert.Equal(t, []fs.Entry{
		{Path: "/mydir", IsDir: true, Depth: 0},
		{Path: "/mydir/hello2.txt", Size: 6, Depth: 1},
	}, entries)

	// Non-empty directories cannot be removed
	assert.Error(t, m.Rmdir(ctx, "/mydir"))

	require.NoError(t, m.Delete(ctx, "/mydir/hello2.txt"))
	require.NoError(t, m.Rmdir(ctx, "/mydir"))

	entries, err = m.ListDir(ctx, "/", 1)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func Test_U_ListDirLevels(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := mount(t)

	_, err := m.WriteNested(ctx, "/a/b/c/d.txt", "d")
	require.NoError(t, err)
	require.NoError(t, m.WriteFile(ctx, "/z.txt", "zz"))

	var tests = map[string]struct {
		Levels   int
		Expected []string
	}{
		"no-recursion": {
			Levels:   0,
			Expected: []string{"/a", "/z.txt"},
		},
		"one-level": {
			Levels:   1,
			Expected: []string{"/a", "/a/b", "/z.txt"},
		},
		"all-levels": {
			Levels:   3,
			Expected: []string{"/a", "/a/b", "/a/b/c", "/a/b/c/d.txt", "/z.txt"},
		},
	}

	for testname, tt := range tests {
		t.Run(testname, func(t *testing.T) {
			entries, err := m.ListDir(ctx, "/", tt.Levels)
			require.NoError(t, err)

			paths := make([]string, 0, len(entries))
			for _, e := range entries {
				paths = append(paths, e.Path)
			}
			assert.Equal(t, tt.Expected, paths)
		})
	}
}

func Test_U_OpErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := mount(t)

	require.NoError(t, m.Mkdir(ctx, "/dir"))
	require.NoError(t, m.WriteFile(ctx, "/file.txt", "content"))

	var tests = map[string]struct {
		Op          func() error
		ExpectedErr error
	}{
		"list-file": {
			Op: func() error {
				_, err := m.ListDir(ctx, "/file.txt", 0)
				return err
			},
			ExpectedErr: errs.ErrNotDirectory,
		},
		"read-dir": {
			Op: func() error {
				_, err := m.ReadFile(ctx, "/dir")
				return err
			},
			ExpectedErr: errs.ErrIsDirectory,
		},
		"write-dir": {
			Op:          func() error { return m.WriteFile(ctx, "/dir", "x") },
			ExpectedErr: errs.ErrIsDirectory,
		},
		"delete-dir": {
			Op:          func() error { return m.Delete(ctx, "/dir") },
			ExpectedErr: errs.ErrIsDirectory,
		},
		"rmdir-file": {
			Op:          func() error { return m.Rmdir(ctx, "/file.txt") },
			ExpectedErr: errs.ErrNotDirectory,
		},
		"write-under-file": {
			Op:          func() error { return m.WriteFile(ctx, "/file.txt/sub.txt", "x") },
			ExpectedErr: errs.ErrNotDirectory,
		},
	}

	for testname, tt := range tests {
		t.Run(testname, func(t *testing.T) {
			assert.ErrorIs(t, tt.Op(), tt.ExpectedErr)
		})
	}
}

func Test_U_MissingPaths(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := mount(t)

	var tests = map[string]func() error{
		"list": func() error {
			_, err := m.ListDir(ctx, "/nope", 1)
			return err
		},
		"read": func() error {
			_, err := m.ReadFile(ctx, "/nope.txt")
			return err
		},
		"write-missing-parent":  func() error { return m.WriteFile(ctx, "/nope/a.txt", "x") },
		"append-missing-parent": func() error { return m.AppendFile(ctx, "/nope/a.txt", "x") },
		"mkdir-missing-parent":  func() error { return m.Mkdir(ctx, "/nope/sub") },
		"rmdir":                 func() error { return m.Rmdir(ctx, "/nope") },
		"rename":                func() error { return m.Rename(ctx, "/nope.txt", "/other.txt") },
		"delete":                func() error { return m.Delete(ctx, "/nope.txt") },
	}

	for testname, op := range tests {
		t.Run(testname, func(t *testing.T) {
			var perr *errs.ErrPathExist
			require.ErrorAs(t, op(), &perr)
			assert.False(t, perr.Exist)
		})
	}

	// Failed writes must not have created the missing parent
	assert.False(t, m.Exists("/nope"))
}

func Test_U_InvalidPaths(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := mount(t)

	var verr *errs.ErrValidationFailed
	assert.ErrorAs(t, m.WriteFile(ctx, "relative.txt", "x"), &verr)
	assert.ErrorAs(t, m.Rmdir(ctx, "/"), &verr)

	require.NoError(t, m.Mkdir(ctx, "/dir"))
	var perr *errs.ErrPathExist
	require.ErrorAs(t, m.Mkdir(ctx, "/dir"), &perr)
	assert.True(t, perr.Exist)
}

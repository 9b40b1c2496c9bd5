package fs

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"

	errs "github.com/ctfer-io/lfs-station/pkg/errors"
)

const (
	DefaultChunkSize  = 512
	DefaultChunkCount = 2048
)

// BenchResult holds the outcome of a throughput benchmark.
type BenchResult struct {
	Path          string        `json:"path"`
	ChunkSize     int           `json:"chunk_size"`
	ChunkCount    int           `json:"chunk_count"`
	BytesWritten  int64         `json:"bytes_written"`
	WriteDuration time.Duration `json:"write_duration"`
	BytesRead     int64         `json:"bytes_read"`
	ReadDuration  time.Duration `json:"read_duration"`
}

// Benchmark writes chunkCount chunks of chunkSize bytes to a file, then
// reads it back chunk by chunk, timing both passes.
// The result is returned even on read failure, holding the write pass.
func (m *Mount) Benchmark(ctx context.Context, fpath string, chunkSize, chunkCount int) (res *BenchResult, err error) {
	defer func() { record(ctx, "benchmark", err) }()

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkCount <= 0 {
		chunkCount = DefaultChunkCount
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	abs, rel, err := clean(fpath)
	if err != nil {
		return nil, err
	}
	if err := m.requireParent(abs); err != nil {
		return nil, &errs.ErrFilesystem{Op: "benchmark", Path: abs, Err: err}
	}

	res = &BenchResult{
		Path:       abs,
		ChunkSize:  chunkSize,
		ChunkCount: chunkCount,
	}
	buf := make([]byte, chunkSize)

	// Write pass
	f, err := m.openFile(rel, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &errs.ErrFilesystem{Op: "benchmark", Path: abs, Err: err}
	}
	start := time.Now()
	for i := 0; i < chunkCount; i++ {
		n, werr := f.Write(buf)
		res.BytesWritten += int64(n)
		if werr != nil {
			err = werr
			break
		}
	}
	res.WriteDuration = time.Since(start)
	if err = multierr.Combine(err, f.Close()); err != nil {
		return res, &errs.ErrFilesystem{Op: "benchmark", Path: abs, Err: err}
	}
	recordThroughput(ctx, "write", res.BytesWritten, res.WriteDuration)

	// Read pass
	f, err = m.openFile(rel, os.O_RDONLY, 0)
	if err != nil {
		return res, &errs.ErrFilesystem{Op: "benchmark", Path: abs, Err: err}
	}
	defer fclose(ctx, f)

	fi, err := m.data.Stat(rel)
	if err != nil {
		return res, &errs.ErrFilesystem{Op: "benchmark", Path: abs, Err: err}
	}
	remaining := fi.Size()
	start = time.Now()
	for remaining > 0 {
		toRead := int64(chunkSize)
		if toRead > remaining {
			toRead = remaining
		}
		n, rerr := io.ReadFull(f, buf[:toRead])
		res.BytesRead += int64(n)
		if rerr != nil {
			res.ReadDuration = time.Since(start)
			return res, &errs.ErrFilesystem{Op: "benchmark", Path: abs, Err: rerr}
		}
		remaining -= toRead
	}
	res.ReadDuration = time.Since(start)
	recordThroughput(ctx, "read", res.BytesRead, res.ReadDuration)

	return res, nil
}

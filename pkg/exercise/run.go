package exercise

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ctfer-io/lfs-station/global"
	errs "github.com/ctfer-io/lfs-station/pkg/errors"
	"github.com/ctfer-io/lfs-station/pkg/fs"
)

const (
	// PrimaryPartition is the partition the full script runs on.
	PrimaryPartition = "spiffs"
	// SecondaryPartition is the partition of the two-partition variant.
	SecondaryPartition = "part2"
)

// Options configure an exercise run.
type Options struct {
	// Table is the partition table to look partitions up in. Defaults to
	// fs.DefaultTable.
	Table *fs.Table

	// TwoPart enables the append on the secondary partition before the
	// primary partition script.
	TwoPart bool

	// FormatIfFailed formats partitions whose superblock can't be read.
	FormatIfFailed bool

	ChunkSize  int
	ChunkCount int
}

func (opts Options) withDefaults() Options {
	if opts.Table == nil {
		opts.Table = fs.DefaultTable()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = fs.DefaultChunkSize
	}
	if opts.ChunkCount <= 0 {
		opts.ChunkCount = fs.DefaultChunkCount
	}
	return opts
}

// Run executes the fixed filesystem script on the flash.
// Operation failures are recorded in the report and logged, and the
// script carries on. Only a mount failure aborts it, in which case the
// partial report is returned along with the *errs.ErrMount.
func Run(ctx context.Context, flash fs.Flash, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	primary, err := opts.Table.Lookup(PrimaryPartition)
	if err != nil {
		return nil, err
	}
	var secondary fs.Partition
	if opts.TwoPart {
		secondary, err = opts.Table.Lookup(SecondaryPartition)
		if err != nil {
			return nil, err
		}
	}

	ctx, span := global.Tracer.Start(ctx, "exercise", trace.WithAttributes(
		attribute.Bool("two_part", opts.TwoPart),
	))
	defer span.End()

	r := &runner{
		opts: opts,
		report: &Report{
			StartedAt: time.Now(),
		},
	}
	defer func() {
		r.report.Duration = time.Since(r.report.StartedAt)
	}()

	if opts.TwoPart {
		if err := r.onPartition(ctx, flash, secondary, r.secondary); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return r.report, err
		}
	}
	if err := r.onPartition(ctx, flash, primary, r.primary); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return r.report, err
	}

	global.Log().Info(ctx, "Test complete",
		zap.Int("steps", len(r.report.Steps)),
		zap.Int("failed", len(r.report.Failed())),
	)
	return r.report, nil
}

type runner struct {
	opts   Options
	report *Report
}

// onPartition mounts the partition, runs the script on it then unmounts.
func (r *runner) onPartition(ctx context.Context, flash fs.Flash, p fs.Partition, script func(context.Context, *fs.Mount)) error {
	ctx = global.WithPartition(ctx, p.Label)
	logger := global.Log()

	var m *fs.Mount
	err := r.step(ctx, "mount", p.Name, p.Label, func(ctx context.Context, s *Step) (err error) {
		m, err = fs.MountPartition(ctx, flash, p, fs.MountOptions{
			FormatIfFailed: r.opts.FormatIfFailed,
		})
		return err
	})
	if err != nil {
		r.report.Aborted = true
		msg := "LittleFS Mount Failed"
		if p.Name == SecondaryPartition {
			msg = "part2 Mount Failed"
		}
		logger.Error(ctx, msg, zap.Error(err))
		var merr *errs.ErrMount
		if errors.As(err, &merr) {
			return err
		}
		return &errs.ErrMount{Label: p.Label, Sub: err}
	}

	script(ctx, m)

	_ = r.step(ctx, "unmount", p.Name, p.Label, func(ctx context.Context, s *Step) error {
		return m.Unmount(ctx)
	})
	return nil
}

func (r *runner) secondary(ctx context.Context, m *fs.Mount) {
	r.appendFile(ctx, m, "/hello0.txt", "World0!\r\n")
	r.readFile(ctx, m, "/hello0.txt")
}

func (r *runner) primary(ctx context.Context, m *fs.Mount) {
	r.writeNested(ctx, m, "/new1/new2/new3/hello3.txt", "Hello3")
	r.listDir(ctx, m, "/", 3)
	r.deleteNested(ctx, m, "/new1/new2/new3/hello3.txt")
	r.listDir(ctx, m, "/", 3)

	r.mkdir(ctx, m, "/mydir")
	r.writeFile(ctx, m, "/mydir/hello2.txt", "Hello2")
	r.listDir(ctx, m, "/", 1)
	r.deleteFile(ctx, m, "/mydir/hello2.txt")
	r.rmdir(ctx, m, "/mydir")
	r.listDir(ctx, m, "/", 1)

	r.writeFile(ctx, m, "/hello.txt", "Hello ")
	r.appendFile(ctx, m, "/hello.txt", "World!\r\n")
	r.readFile(ctx, m, "/hello.txt")
	r.rename(ctx, m, "/hello.txt", "/foo.txt")
	r.readFile(ctx, m, "/foo.txt")
	r.deleteFile(ctx, m, "/foo.txt")

	r.benchmark(ctx, m, "/test.txt")
	r.deleteFile(ctx, m, "/test.txt")
}

// step runs one operation under its own span, records its outcome and
// logs it.
func (r *runner) step(ctx context.Context, name, partition, path string, do func(context.Context, *Step) error) error {
	ctx = global.WithStep(ctx, name)
	ctx, span := global.Tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("path", path),
	))
	defer span.End()

	s := &Step{
		Name:      name,
		Partition: partition,
		Path:      path,
	}
	r.report.Steps = append(r.report.Steps, s)

	start := time.Now()
	err := do(ctx, s)
	s.Duration = time.Since(start)

	logger := global.Log()
	if err != nil {
		s.Error = err.Error()
		span.SetStatus(codes.Error, s.Error)
		logger.Error(ctx, name+" failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	s.OK = true
	logger.Info(ctx, name+" succeeded",
		zap.String("path", path),
		zap.Duration("duration", s.Duration),
	)
	return nil
}

func (r *runner) listDir(ctx context.Context, m *fs.Mount, dir string, levels int) {
	_ = r.step(ctx, "list", m.Partition.Name, dir, func(ctx context.Context, s *Step) error {
		entries, err := m.ListDir(ctx, dir, levels)
		if err != nil {
			return err
		}
		s.Entries = entries

		logger := global.Log()
		for _, e := range entries {
			if e.IsDir {
				logger.Info(ctx, "DIR", zap.String("path", e.Path), zap.Int("depth", e.Depth))
				continue
			}
			logger.Info(ctx, "FILE", zap.String("path", e.Path), zap.Int64("size", e.Size))
		}
		return nil
	})
}

func (r *runner) mkdir(ctx context.Context, m *fs.Mount, dir string) {
	_ = r.step(ctx, "mkdir", m.Partition.Name, dir, func(ctx context.Context, _ *Step) error {
		return m.Mkdir(ctx, dir)
	})
}

func (r *runner) rmdir(ctx context.Context, m *fs.Mount, dir string) {
	_ = r.step(ctx, "rmdir", m.Partition.Name, dir, func(ctx context.Context, _ *Step) error {
		return m.Rmdir(ctx, dir)
	})
}

func (r *runner) readFile(ctx context.Context, m *fs.Mount, fpath string) {
	_ = r.step(ctx, "read", m.Partition.Name, fpath, func(ctx context.Context, s *Step) error {
		b, err := m.ReadFile(ctx, fpath)
		if err != nil {
			return err
		}
		s.Content = string(b)
		global.Log().Info(ctx, "read from file", zap.String("content", s.Content))
		return nil
	})
}

func (r *runner) writeFile(ctx context.Context, m *fs.Mount, fpath, msg string) {
	_ = r.step(ctx, "write", m.Partition.Name, fpath, func(ctx context.Context, _ *Step) error {
		return m.WriteFile(ctx, fpath, msg)
	})
}

func (r *runner) appendFile(ctx context.Context, m *fs.Mount, fpath, msg string) {
	_ = r.step(ctx, "append", m.Partition.Name, fpath, func(ctx context.Context, _ *Step) error {
		return m.AppendFile(ctx, fpath, msg)
	})
}

func (r *runner) rename(ctx context.Context, m *fs.Mount, from, to string) {
	_ = r.step(ctx, "rename", m.Partition.Name, from, func(ctx context.Context, _ *Step) error {
		return m.Rename(ctx, from, to)
	})
}

func (r *runner) deleteFile(ctx context.Context, m *fs.Mount, fpath string) {
	_ = r.step(ctx, "delete", m.Partition.Name, fpath, func(ctx context.Context, _ *Step) error {
		return m.Delete(ctx, fpath)
	})
}

func (r *runner) writeNested(ctx context.Context, m *fs.Mount, fpath, msg string) {
	_ = r.step(ctx, "write-nested", m.Partition.Name, fpath, func(ctx context.Context, _ *Step) error {
		created, err := m.WriteNested(ctx, fpath, msg)
		if len(created) != 0 {
			global.Log().Info(ctx, "directories created", zap.Strings("dirs", created))
		}
		return err
	})
}

func (r *runner) deleteNested(ctx context.Context, m *fs.Mount, fpath string) {
	_ = r.step(ctx, "delete-nested", m.Partition.Name, fpath, func(ctx context.Context, _ *Step) error {
		removed, err := m.DeleteNested(ctx, fpath)
		if len(removed) != 0 {
			global.Log().Info(ctx, "directories removed", zap.Strings("dirs", removed))
		}
		return err
	})
}

func (r *runner) benchmark(ctx context.Context, m *fs.Mount, fpath string) {
	_ = r.step(ctx, "benchmark", m.Partition.Name, fpath, func(ctx context.Context, _ *Step) error {
		res, err := m.Benchmark(ctx, fpath, r.opts.ChunkSize, r.opts.ChunkCount)
		if err != nil {
			return err
		}
		r.report.Benchmark = res
		global.Log().Info(ctx, "benchmark",
			zap.Int64("bytes_written", res.BytesWritten),
			zap.Duration("write", res.WriteDuration),
			zap.Int64("bytes_read", res.BytesRead),
			zap.Duration("read", res.ReadDuration),
		)
		return nil
	})
}

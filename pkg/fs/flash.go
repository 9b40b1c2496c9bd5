package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/disk"

	errs "github.com/ctfer-io/lfs-station/pkg/errors"
)

// Flash backends.
const (
	BackendOS  = "os"
	BackendMem = "mem"
)

// Flash is the raw storage partitions are laid on.
type Flash interface {
	// Key uniquely identifies the flash in the process, such that a partition
	// is never mounted twice at once.
	Key() string

	// Partition returns the raw root of a partition region.
	Partition(Partition) (billy.Filesystem, error)

	// Reserve checks the flash can host the partition before it is formatted.
	Reserve(Partition) error
}

// NewFlash returns the flash of the given backend. The directory is only
// used by the "os" backend.
func NewFlash(backend, dir string) (Flash, error) {
	switch backend {
	case BackendOS:
		return NewOSFlash(dir)
	case BackendMem:
		return NewMemFlash(), nil
	default:
		return nil, &errs.ErrValidationFailed{Reason: fmt.Sprintf("unsupported flash backend %q", backend)}
	}
}

// OSFlash lays partitions out as directories under Dir.
type OSFlash struct {
	Dir string
}

var _ Flash = (*OSFlash)(nil)

func NewOSFlash(dir string) (*OSFlash, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "during mkdir of flash directory %s", abs)
	}
	return &OSFlash{Dir: abs}, nil
}

func (f *OSFlash) Key() string {
	return "os:" + f.Dir
}

func (f *OSFlash) Partition(p Partition) (billy.Filesystem, error) {
	dir := filepath.Join(f.Dir, p.Name)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "during mkdir of partition directory %s", dir)
	}
	return osfs.New(dir), nil
}

// Reserve checks the host volume has enough free room for the partition
// size. Already used bytes of the partition are not deduced, as formatting
// frees them.
func (f *OSFlash) Reserve(p Partition) error {
	if p.Size == 0 {
		return nil
	}
	usage, err := disk.Usage(f.Dir)
	if err != nil {
		return errors.Wrapf(err, "getting usage of %s", f.Dir)
	}
	if usage.Free < uint64(p.Size) {
		return errors.Errorf("partition %s requires %d bytes, only %d are free on %s", p.Name, p.Size, usage.Free, usage.Path)
	}
	return nil
}

// MemFlash keeps partitions in memory, lost with the process.
type MemFlash struct {
	mx    sync.Mutex
	parts map[string]billy.Filesystem
}

var _ Flash = (*MemFlash)(nil)

func NewMemFlash() *MemFlash {
	return &MemFlash{
		parts: map[string]billy.Filesystem{},
	}
}

func (f *MemFlash) Key() string {
	return fmt.Sprintf("mem:%p", f)
}

func (f *MemFlash) Partition(p Partition) (billy.Filesystem, error) {
	f.mx.Lock()
	defer f.mx.Unlock()

	raw, ok := f.parts[p.Name]
	if !ok {
		raw = memfs.New()
		f.parts[p.Name] = raw
	}
	return raw, nil
}

func (f *MemFlash) Reserve(Partition) error {
	return nil
}

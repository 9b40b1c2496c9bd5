package fs

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	errs "github.com/ctfer-io/lfs-station/pkg/errors"
)

const (
	// DefaultMaxFiles is the number of simultaneously open files a partition
	// accepts when the table does not say otherwise.
	DefaultMaxFiles = 10
)

// Partition is an entry of the partition table.
type Partition struct {
	// Name identifies the backing region (e.g. "spiffs", "part2").
	Name string `yaml:"name" json:"name"`
	// Label is the mount point (e.g. "/littlefs").
	Label string `yaml:"label" json:"label"`
	// MaxFiles bounds the number of simultaneously open files.
	MaxFiles int `yaml:"max_files" json:"max_files"`
	// Size is the capacity of the region in bytes, 0 meaning unbounded.
	Size int64 `yaml:"size" json:"size"`
}

// Table is a partition table, as loaded from a YAML document of the form:
//
//	partitions:
//	  - name: spiffs
//	    label: /littlefs
//	    max_files: 10
//	    size: 1441792
type Table struct {
	Partitions []Partition `yaml:"partitions"`
}

// DefaultTable mirrors the two flash filesystem regions of the reference
// board layout: the default "spiffs" region and a secondary "part2" one.
func DefaultTable() *Table {
	return &Table{
		Partitions: []Partition{
			{
				Name:     "spiffs",
				Label:    "/littlefs",
				MaxFiles: DefaultMaxFiles,
				Size:     0x160000,
			}, {
				Name:     "part2",
				Label:    "/lfs2",
				MaxFiles: 5,
				Size:     0x100000,
			},
		},
	}
}

// LoadTable reads a partition table from a YAML file, then validates it.
func LoadTable(fpath string) (*Table, error) {
	b, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	return ParseTable(b)
}

// ParseTable decodes a YAML partition table, defaults missing values and
// validates it.
func ParseTable(b []byte) (*Table, error) {
	tbl := &Table{}
	if err := yaml.Unmarshal(b, tbl); err != nil {
		return nil, &errs.ErrValidationFailed{Reason: fmt.Sprintf("invalid partition table: %s", err)}
	}
	for i := range tbl.Partitions {
		if tbl.Partitions[i].MaxFiles == 0 {
			tbl.Partitions[i].MaxFiles = DefaultMaxFiles
		}
		if tbl.Partitions[i].Label == "" {
			tbl.Partitions[i].Label = "/" + tbl.Partitions[i].Name
		}
	}
	if err := tbl.Validate(); err != nil {
		return nil, err
	}
	return tbl, nil
}

// Validate checks names and labels are unique and well-formed.
func (tbl *Table) Validate() error {
	if len(tbl.Partitions) == 0 {
		return &errs.ErrValidationFailed{Reason: "partition table is empty"}
	}
	names := map[string]struct{}{}
	labels := map[string]struct{}{}
	for _, p := range tbl.Partitions {
		if p.Name == "" || strings.ContainsAny(p.Name, `/\`) || p.Name == "." || p.Name == ".." {
			return &errs.ErrValidationFailed{Reason: fmt.Sprintf("invalid partition name %q", p.Name)}
		}
		if !strings.HasPrefix(p.Label, "/") {
			return &errs.ErrValidationFailed{Reason: fmt.Sprintf("partition %s label %q must be absolute", p.Name, p.Label)}
		}
		if p.MaxFiles < 1 {
			return &errs.ErrValidationFailed{Reason: fmt.Sprintf("partition %s must accept at least one open file", p.Name)}
		}
		if p.Size < 0 {
			return &errs.ErrValidationFailed{Reason: fmt.Sprintf("partition %s has a negative size", p.Name)}
		}
		if _, ok := names[p.Name]; ok {
			return &errs.ErrValidationFailed{Reason: fmt.Sprintf("duplicated partition name %s", p.Name)}
		}
		if _, ok := labels[p.Label]; ok {
			return &errs.ErrValidationFailed{Reason: fmt.Sprintf("duplicated partition label %s", p.Label)}
		}
		names[p.Name] = struct{}{}
		labels[p.Label] = struct{}{}
	}
	return nil
}

// Lookup returns the partition with the given name.
func (tbl *Table) Lookup(name string) (Partition, error) {
	for _, p := range tbl.Partitions {
		if p.Name == name {
			return p, nil
		}
	}
	return Partition{}, &errs.ErrPartitionUnknown{Name: name}
}

package fs

import (
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Superblock describes a formatted partition. It is stored at the root of
// the raw partition region, next to the data region.
type Superblock struct {
	Magic       string    `json:"magic"`
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Size        int64     `json:"size"`
	FormattedAt time.Time `json:"formatted_at"`
}

func readSuperblock(raw billy.Filesystem, p Partition) (*Superblock, error) {
	b, err := util.ReadFile(raw, superblockFile)
	if err != nil {
		return nil, err
	}
	sb := &Superblock{}
	if err := json.Unmarshal(b, sb); err != nil {
		return nil, errors.Wrap(err, "corrupted superblock")
	}
	if sb.Magic != superblockMagic {
		return nil, errors.Errorf("corrupted superblock: bad magic %q", sb.Magic)
	}
	if sb.Version != superblockVersion {
		return nil, errors.Errorf("unsupported superblock version %d", sb.Version)
	}
	if sb.Name != p.Name {
		return nil, errors.Errorf("superblock belongs to partition %s", sb.Name)
	}
	if _, err := raw.Stat(dataSubdir); err != nil {
		return nil, errors.Wrap(err, "missing data region")
	}
	return sb, nil
}

// format wipes the raw region then writes a fresh superblock and an empty
// data region.
func format(raw billy.Filesystem, p Partition) (*Superblock, error) {
	entries, err := raw.ReadDir(".")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := util.RemoveAll(raw, e.Name()); err != nil {
			return nil, err
		}
	}
	if err := raw.MkdirAll(dataSubdir, 0o755); err != nil {
		return nil, err
	}

	sb := &Superblock{
		Magic:       superblockMagic,
		Version:     superblockVersion,
		Name:        p.Name,
		Label:       p.Label,
		Size:        p.Size,
		FormattedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(sb)
	if err != nil {
		return nil, err
	}
	if err := util.WriteFile(raw, superblockFile, b, 0o644); err != nil {
		return nil, err
	}
	return sb, nil
}

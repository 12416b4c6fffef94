package models

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"gopkg.in/yaml.v3"
)

const ConfigFile = "config.yaml"

const (
	DefaultPageSize = 0x1000
	// qemu virt puts RAM at 0x80000000
	DefaultPhysBase = 0x80000000
	DefaultFrames   = 32768

	// Sv39 megapage
	MaxPageSize    = 1 << 21
	MaxFillWorkers = 64
)

type Config struct {
	PageSize uint64 `yaml:"page_size"`
	// flat binaries are mapped here
	FlatBase uint64 `yaml:"flat_base"`
	// physical address of the first frame in the reference pool
	PhysBase uint64 `yaml:"phys_base"`
	Frames   int    `yaml:"frames"`
	// frames of one segment filled concurrently, 1 fills in order
	FillWorkers int `yaml:"fill_workers"`

	// reject an entry point outside every mapped executable segment
	StrictEntry bool `yaml:"strict_entry"`
	// reject overlapping loadable segments before allocating anything
	StrictOverlap bool `yaml:"strict_overlap"`

	Verbose bool `yaml:"verbose"`
	Color   bool `yaml:"color"`

	Output io.Writer `yaml:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		PageSize:    DefaultPageSize,
		PhysBase:    DefaultPhysBase,
		Frames:      DefaultFrames,
		FillWorkers: 1,
		Output:      os.Stderr,
	}
}

// ParseConfig overlays YAML data on the defaults.
func ParseConfig(data []byte) (*Config, error) {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindConfig loads the first config.yaml found in the user or system config
// folders. It returns the defaults and an empty path when there is none.
func FindConfig() (*Config, string, error) {
	dirs := configdir.New("rvexec", "")
	folder := dirs.QueryFolderContainsFile(ConfigFile)
	if folder == nil {
		return DefaultConfig(), "", nil
	}
	path := filepath.Join(folder.Path, ConfigFile)
	data, err := folder.ReadFile(ConfigFile)
	if err != nil {
		return nil, path, errors.Wrapf(err, "failed to read %s", path)
	}
	c, err := ParseConfig(data)
	if err != nil {
		return nil, path, errors.Wrap(err, path)
	}
	return c, path, nil
}

// CheckPageSize rejects page sizes that are not a power of two or exceed
// MaxPageSize.
func CheckPageSize(size uint64) error {
	if size == 0 || size&(size-1) != 0 {
		return errors.Errorf("page size %#x is not a power of two", size)
	}
	if size > MaxPageSize {
		return errors.Errorf("page size %#x exceeds %#x", size, uint64(MaxPageSize))
	}
	return nil
}

func (c *Config) Validate() error {
	if err := CheckPageSize(c.PageSize); err != nil {
		return err
	}
	if c.FlatBase&(c.PageSize-1) != 0 {
		return errors.Errorf("flat base %#x is not page aligned", c.FlatBase)
	}
	if c.PhysBase&(c.PageSize-1) != 0 {
		return errors.Errorf("phys base %#x is not page aligned", c.PhysBase)
	}
	if c.Frames <= 0 {
		return errors.Errorf("invalid frame count: %d", c.Frames)
	}
	if c.FillWorkers <= 0 {
		c.FillWorkers = 1
	} else if c.FillWorkers > MaxFillWorkers {
		c.FillWorkers = MaxFillWorkers
	}
	return nil
}

func (c *Config) PageFloor(addr uint64) uint64 {
	return addr &^ (c.PageSize - 1)
}

// PageCeil rounds up to the next page boundary. ok is false on overflow.
func (c *Config) PageCeil(addr uint64) (uint64, bool) {
	up := addr + c.PageSize - 1
	if up < addr {
		return 0, false
	}
	return up &^ (c.PageSize - 1), true
}

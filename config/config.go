// Package config handles topaz.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"

	"github.com/topaz-lang/topaz/vm"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "topaz.toml"

// Config represents a topaz.toml file.
type Config struct {
	Log      LogConfig      `toml:"log"`
	VM       VMConfig       `toml:"vm"`
	Compiler CompilerConfig `toml:"compiler"`

	// Dir is the directory containing the topaz.toml file (set at load
	// time). Empty when no file was found.
	Dir string `toml:"-"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// VMConfig configures the virtual machine.
type VMConfig struct {
	Trace     bool `toml:"trace"`
	MaxFrames int  `toml:"max-frames"`
	MaxStack  int  `toml:"max-stack"`
}

// CompilerConfig configures the compiler.
type CompilerConfig struct {
	Disassemble bool `toml:"disassemble"`
}

// Default returns the configuration used when no topaz.toml exists.
func Default() *Config {
	return &Config{
		VM: VMConfig{
			MaxFrames: vm.DefaultMaxFrames,
			MaxStack:  vm.DefaultMaxStack,
		},
	}
}

// Parse decodes topaz.toml content on top of the defaults.
func Parse(data string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(data, c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load parses a topaz.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if c.Log.Path != "" && !filepath.IsAbs(c.Log.Path) {
		c.Log.Path = filepath.Join(c.Dir, c.Log.Path)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a topaz.toml file, then loads
// and returns it. Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate rejects limits the VM cannot honor.
func (c *Config) Validate() error {
	if c.Log.Verbosity < -4 || c.Log.Verbosity > 2 {
		return fmt.Errorf("log.verbosity must be between -4 and 2, got %d", c.Log.Verbosity)
	}
	if c.VM.MaxFrames < 1 {
		return fmt.Errorf("vm.max-frames must be positive, got %d", c.VM.MaxFrames)
	}
	if c.VM.MaxStack < 256 {
		return fmt.Errorf("vm.max-stack must be at least 256, got %d", c.VM.MaxStack)
	}
	return nil
}

// ConfigureLogging applies the [log] table to commonlog.
func (c *Config) ConfigureLogging() {
	var path *string
	if c.Log.Path != "" {
		path = &c.Log.Path
	}
	commonlog.Configure(c.Log.Verbosity, path)
}

// Apply configures a VM from the [vm] table.
func (c *Config) Apply(m *vm.VM) {
	m.SetTrace(c.VM.Trace)
	m.SetLimits(c.VM.MaxFrames, c.VM.MaxStack)
}

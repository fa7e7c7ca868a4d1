package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/loom-runtime/errors"
)

const (
	// EnvPrefix prefixes environment overrides: LOOM_BIN_DIR, LOOM_VM_CALL_STACK_SIZE, ...
	EnvPrefix = "LOOM"
	// FileName is the default config file name.
	FileName = "loom.toml"
)

// Config holds runtime and CLI settings.
type Config struct {
	BinDir        string      `mapstructure:"bin_dir" toml:"bin_dir"`
	Extension     string      `mapstructure:"extension" toml:"extension"`
	ValidateTypes bool        `mapstructure:"validate_types" toml:"validate_types"`
	Log           LogConfig   `mapstructure:"log" toml:"log"`
	VM            VMConfig    `mapstructure:"vm" toml:"vm"`
	Trace         TraceConfig `mapstructure:"trace" toml:"trace"`
	Wasm          WasmConfig  `mapstructure:"wasm" toml:"wasm"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

type VMConfig struct {
	CallStackSize   int  `mapstructure:"call_stack_size" toml:"call_stack_size"`
	RegistrySize    int  `mapstructure:"registry_size" toml:"registry_size"`
	RegistryMaxSize int  `mapstructure:"registry_max_size" toml:"registry_max_size"`
	SkipStdlib      bool `mapstructure:"skip_stdlib" toml:"skip_stdlib"`
}

type TraceConfig struct {
	MessageCap int `mapstructure:"message_cap" toml:"message_cap"`
}

// WasmConfig lists WebAssembly modules registered as native bindings.
type WasmConfig struct {
	MemoryLimitPages uint32       `mapstructure:"memory_limit_pages" toml:"memory_limit_pages"`
	Modules          []WasmModule `mapstructure:"modules" toml:"modules"`
}

type WasmModule struct {
	// Type is the fully-qualified script type the module implements.
	Type string `mapstructure:"type" toml:"type"`
	Path string `mapstructure:"path" toml:"path"`
}

// constrainedTargets skip runtime type validation by default.
var constrainedTargets = map[string]bool{
	"android": true,
	"ios":     true,
	"js":      true,
	"wasip1":  true,
}

// Default returns the built-in configuration for the current platform.
func Default() *Config {
	return &Config{
		BinDir:        "./bin",
		Extension:     ".loom",
		ValidateTypes: !constrainedTargets[runtime.GOOS],
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		VM: VMConfig{
			CallStackSize:   256,
			RegistrySize:    1024 * 20,
			RegistryMaxSize: 1024 * 80,
		},
		Trace: TraceConfig{
			MessageCap: 2046,
		},
	}
}

// Load reads path (TOML) over the defaults and applies LOOM_* environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("bin_dir", d.BinDir)
	v.SetDefault("extension", d.Extension)
	v.SetDefault("validate_types", d.ValidateTypes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("vm.call_stack_size", d.VM.CallStackSize)
	v.SetDefault("vm.registry_size", d.VM.RegistrySize)
	v.SetDefault("vm.registry_max_size", d.VM.RegistryMaxSize)
	v.SetDefault("vm.skip_stdlib", d.VM.SkipStdlib)
	v.SetDefault("trace.message_cap", d.Trace.MessageCap)
	v.SetDefault("wasm.memory_limit_pages", d.Wasm.MemoryLimitPages)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Detail("read %s", path).
				Cause(err).
				Build()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Detail("decode configuration").
			Cause(err).
			Build()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path(key).
			Detail(format, args...).
			Build()
	}

	if c.BinDir == "" {
		return invalid("bin_dir", "must not be empty")
	}
	if !strings.HasPrefix(c.Extension, ".") || len(c.Extension) < 2 {
		return invalid("extension", "must start with a dot, got %q", c.Extension)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "unknown level %q", c.Log.Level)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return invalid("log.format", "must be console or json, got %q", c.Log.Format)
	}
	if c.VM.CallStackSize < 0 || c.VM.RegistrySize < 0 || c.VM.RegistryMaxSize < 0 {
		return invalid("vm", "sizes must not be negative")
	}
	if c.Trace.MessageCap < 1 || c.Trace.MessageCap > 2048 {
		return invalid("trace.message_cap", "must be within 1..2048, got %d", c.Trace.MessageCap)
	}
	for i, m := range c.Wasm.Modules {
		if m.Type == "" || m.Path == "" {
			return invalid(fmt.Sprintf("wasm.modules[%d]", i), "type and path are required")
		}
	}
	return nil
}

// ExecutablePath resolves an executable name: names are looked up in
// BinDir and get Extension appended when missing, unless abs is set.
func (c *Config) ExecutablePath(name string, abs bool) string {
	if !strings.Contains(name, c.Extension) {
		name += c.Extension
	}
	if abs {
		return name
	}
	return filepath.Join(c.BinDir, name)
}

// Write stores cfg as TOML at path, creating parent directories.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return f.Close()
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.DisableStacktrace = true
	return zc.Build()
}

package app

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/exp/slog"
)

// Config controls window and sharing parameters. All fields have
// defaults, and a missing config file is not an error.
type Config struct {
	Window  WindowConfig  `toml:"window"`
	Texture TextureConfig `toml:"texture"`
	Shader  ShaderConfig  `toml:"shader"`
	Log     LogConfig     `toml:"log"`
}

type WindowConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	VSync  bool   `toml:"vsync"`
}

type TextureConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

type ShaderConfig struct {
	// ComputePath points at the SPIR-V for the pattern-generating
	// compute shader.
	ComputePath string `toml:"compute_path"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func DefaultConfig() Config {
	return Config{
		Window: WindowConfig{
			Width:  1280,
			Height: 720,
			Title:  "glvk interop",
			VSync:  true,
		},
		Texture: TextureConfig{
			Width:  1024,
			Height: 1024,
		},
		Shader: ShaderConfig{
			ComputePath: "shaders/pattern.comp.spv",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads a TOML config from path, applying defaults for any
// fields the file does not set. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, errors.Wrapf(err, "failed to read config from %s", path)
	}

	err = toml.Unmarshal(data, &config)
	if err != nil {
		return config, errors.Wrapf(err, "failed to parse config from %s", path)
	}

	err = config.validate()
	return config, err
}

func (c *Config) validate() error {
	if c.Window.Width < 1 || c.Window.Height < 1 {
		return errors.Newf("invalid window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Texture.Width < 1 || c.Texture.Height < 1 {
		return errors.Newf("invalid texture size %dx%d", c.Texture.Width, c.Texture.Height)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel maps the configured level name onto a slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch c.Log.Level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.Newf("unknown log level %q", c.Log.Level)
}

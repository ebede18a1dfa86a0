// Package config loads the shutter binary's configuration from a YAML or
// JSON file, applies SHUTTER_* environment overrides and validates it.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the full binary configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" json:"server"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Camera   CameraConfig   `yaml:"camera" json:"camera"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Executor ExecutorConfig `yaml:"executor" json:"executor"`

	// ErrorHistory is the number of recent failures kept by the controller.
	ErrorHistory int `yaml:"error_history" json:"error_history" validate:"min=0,max=1000"`
}

// ServerConfig configures the web UI.
type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" validate:"required,hostname_port"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level       string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" json:"development"`
}

// CameraConfig configures the V4L2 backend.
type CameraConfig struct {
	V4L2Ctl string `yaml:"v4l2_ctl" json:"v4l2_ctl" validate:"required"`
	FFmpeg  string `yaml:"ffmpeg" json:"ffmpeg" validate:"required"`

	// Facing maps device paths to back, front or external. Unlisted devices
	// are treated as back-facing.
	Facing map[string]string `yaml:"facing" json:"facing" validate:"dive,oneof=back front external"`
}

// OutputConfig configures where recordings are written.
type OutputConfig struct {
	Root         string `yaml:"root" json:"root" validate:"required"`
	RelativePath string `yaml:"relative_path" json:"relative_path" validate:"required"`
	Prefix       string `yaml:"prefix" json:"prefix" validate:"required,excludesall=/\\"`
	MimeType     string `yaml:"mime_type" json:"mime_type" validate:"required"`
}

// ExecutorConfig configures the background executor.
type ExecutorConfig struct {
	DrainTimeout Duration `yaml:"drain_timeout" json:"drain_timeout" validate:"gt=0"`
}

// Duration is a time.Duration read from strings such as "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: "0.0.0.0:8080"},
		Log:    LogConfig{Level: "info"},
		Camera: CameraConfig{
			V4L2Ctl: "v4l2-ctl",
			FFmpeg:  "ffmpeg",
		},
		Output: OutputConfig{
			Root:         ".",
			RelativePath: "Movies/Shutter",
			Prefix:       "video_no_audio",
			MimeType:     "video/mp4",
		},
		Executor:     ExecutorConfig{DrainTimeout: Duration(2 * time.Second)},
		ErrorHistory: 16,
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		codec := CodecFor(path)
		if err := codec.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s config %s: %w", codec.ContentType(), path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// applyEnv overrides fields from SHUTTER_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SHUTTER_ADDR":          &c.Server.Addr,
		"SHUTTER_LOG_LEVEL":     &c.Log.Level,
		"SHUTTER_V4L2_CTL":      &c.Camera.V4L2Ctl,
		"SHUTTER_FFMPEG":        &c.Camera.FFmpeg,
		"SHUTTER_OUTPUT_ROOT":   &c.Output.Root,
		"SHUTTER_OUTPUT_PATH":   &c.Output.RelativePath,
		"SHUTTER_OUTPUT_PREFIX": &c.Output.Prefix,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("SHUTTER_LOG_DEVELOPMENT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SHUTTER_LOG_DEVELOPMENT: %w", err)
		}
		c.Log.Development = b
	}
	if v, ok := lookup("SHUTTER_DRAIN_TIMEOUT"); ok {
		if err := c.Executor.DrainTimeout.parse(v); err != nil {
			return fmt.Errorf("SHUTTER_DRAIN_TIMEOUT: %w", err)
		}
	}
	if v, ok := lookup("SHUTTER_ERROR_HISTORY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHUTTER_ERROR_HISTORY: %w", err)
		}
		c.ErrorHistory = n
	}
	return nil
}

// Package config loads daemon configuration from an optional YAML file
// overlaid with environment variables. Grounded on config.go
// (gopkg.in/yaml.v2, "load if present, defaults otherwise"), generalized
// here to a single process-wide daemon config rather than a per-function
// one, with environment overrides layered the way ConfigPath/
// FUNC_CONFIG_FILE env overrides work.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// Filename is the config file read from the current working directory
// unless RES_CONFIG_FILE overrides the path.
const Filename = "res.yaml"

// Config holds everything the daemon needs to start: where images and
// jobs live on disk, where to listen, and which container runtime binary
// to invoke.
type Config struct {
	ImageRoot     string `yaml:"image_root,omitempty"`
	JobRoot       string `yaml:"job_root,omitempty"`
	ListenAddr    string `yaml:"listen_addr,omitempty"`
	RuntimeBinary string `yaml:"runtime_binary,omitempty"`
	Verbose       bool   `yaml:"verbose,omitempty"`
}

// New returns a Config populated with static defaults.
func New() Config {
	return Config{
		ImageRoot:     filepath.Join(".store", "images"),
		JobRoot:       filepath.Join(".store", "jobs"),
		ListenAddr:    ":8080",
		RuntimeBinary: "apptainer",
	}
}

// Path returns the file Load reads from: Filename in the current
// directory, unless RES_CONFIG_FILE is set.
func Path() string {
	if e := os.Getenv("RES_CONFIG_FILE"); e != "" {
		return e
	}
	return Filename
}

// NewDefault returns New overlaid with Path(), if it exists, then with
// environment variable overrides. The config file is not required to be
// present.
func NewDefault() (Config, error) {
	cfg := New()

	bb, err := os.ReadFile(Path())
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, err
		}
	} else if err := yaml.Unmarshal(bb, &cfg); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Load reads the config exactly as it exists at path, with no static
// defaults applied first.
func Load(path string) (Config, error) {
	var cfg Config
	bb, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(bb, &cfg)
	return cfg, err
}

// Write serializes the config to path.
func (c Config) Write(path string) error {
	bb, err := yaml.Marshal(&c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bb, 0o644)
}

// applyEnv lets RES_* environment variables override the config's fields,
// the highest-precedence layer, the same way FUNC_CONFIG_FILE/
// FUNC_REPOSITORIES_PATH override static paths.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("RES_IMAGE_ROOT"); ok {
		cfg.ImageRoot = v
	}
	if v, ok := os.LookupEnv("RES_JOB_ROOT"); ok {
		cfg.JobRoot = v
	}
	if v, ok := os.LookupEnv("RES_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("RES_RUNTIME_BINARY"); ok {
		cfg.RuntimeBinary = v
	}
	if v, ok := os.LookupEnv("RES_VERBOSE"); ok {
		cfg.Verbose = v == "1" || v == "true"
	}
}

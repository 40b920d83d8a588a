package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/artasov/speechd/internal/logger"
	"github.com/spf13/viper"
)

// Contract constants for the managed fast-fast-whisper server. Values match
// the environment the control scripts and the server itself expect.
const (
	RepoURL    = "https://github.com/Artasov/fast-fast-whisper.git"
	ArchiveURL = "https://github.com/Artasov/fast-fast-whisper/archive/refs/heads/main.zip"
	RepoName   = "fast-fast-whisper"

	DefaultHost = "127.0.0.1"
	DefaultPort = 8868

	// EnvInstallDir points to a shared install base directory so multiple
	// apps can reuse the same checkout without guessing paths.
	EnvInstallDir = "WINKY_LOCAL_SPEECH_DIR"
	EnvPort       = "FAST_FAST_WHISPER_PORT"
	EnvHost       = "FAST_FAST_WHISPER_HOST"

	// InstallHintFile is saved next to the config so the install path can be
	// recovered when EnvInstallDir was not exported into this process.
	InstallHintFile = "local-speech-path.txt"
)

// Default probe timings. Starting the server loads a model and takes far
// longer than a graceful stop.
const (
	DefaultHealthInterval = 2 * time.Second
	DefaultHealthTimeout  = 120 * time.Second
	DefaultStopTimeout    = 30 * time.Second
	DefaultProbeTimeout   = 5 * time.Second
)

const DefaultAPIAddr = "127.0.0.1:8787"

// Config holds the daemon configuration. Values come from the TOML config
// file with environment overrides applied on top.
type Config struct {
	InstallRoot string `toml:"install_root" mapstructure:"install_root"`
	RepoURL     string `toml:"repo_url" mapstructure:"repo_url"`
	ArchiveURL  string `toml:"archive_url" mapstructure:"archive_url"`
	RepoName    string `toml:"repo_name" mapstructure:"repo_name"`

	Host string `toml:"host" mapstructure:"host"`
	Port int    `toml:"port" mapstructure:"port"`

	HealthInterval time.Duration `toml:"health_interval" mapstructure:"health_interval"`
	HealthTimeout  time.Duration `toml:"health_timeout" mapstructure:"health_timeout"`
	StopTimeout    time.Duration `toml:"stop_timeout" mapstructure:"stop_timeout"`
	ProbeTimeout   time.Duration `toml:"probe_timeout" mapstructure:"probe_timeout"`

	// AutoStart starts the server on daemon boot (serve command).
	AutoStart bool `toml:"auto_start" mapstructure:"auto_start"`

	// HistoryDSN selects the operation audit sink; empty disables auditing.
	// See internal/history/factory for supported formats.
	HistoryDSN string `toml:"history_dsn" mapstructure:"history_dsn"`

	APIAddr string `toml:"api_addr" mapstructure:"api_addr"`

	Log logger.Config `toml:"log" mapstructure:"log"`

	// configDir is where the config file lives; the install hint file is
	// stored alongside it.
	configDir string
}

// Default returns a config with all defaults applied and the install root
// resolved from the environment.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a TOML config from path. A missing file is not an error; the
// returned config then carries defaults plus environment overrides.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		c.configDir = filepath.Dir(path)
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := v.Unmarshal(c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.RepoURL == "" {
		c.RepoURL = RepoURL
	}
	if c.ArchiveURL == "" {
		c.ArchiveURL = ArchiveURL
	}
	if c.RepoName == "" {
		c.RepoName = RepoName
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.APIAddr == "" {
		c.APIAddr = DefaultAPIAddr
	}
	if c.InstallRoot == "" {
		c.InstallRoot = c.resolveInstallRoot()
	}
}

// resolveInstallRoot picks the install base: environment variable first,
// then the hint file next to the config, then the user cache directory.
func (c *Config) resolveInstallRoot() string {
	if dir := strings.TrimSpace(os.Getenv(EnvInstallDir)); dir != "" {
		return dir
	}
	if c.configDir != "" {
		if hint, err := ReadInstallHint(c.configDir); err == nil && hint != "" {
			return hint
		}
	}
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "speechd")
	}
	wd, _ := os.Getwd()
	return wd
}

// SetInstallRoot overrides the install base (user picked a target dir) and
// persists the choice to the hint file when a config dir is known.
func (c *Config) SetInstallRoot(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("install dir must not be empty")
	}
	c.InstallRoot = dir
	if c.configDir == "" {
		return nil
	}
	return WriteInstallHint(c.configDir, dir)
}

// RepoDir is the checkout directory of the managed server.
func (c *Config) RepoDir() string {
	return filepath.Join(c.InstallRoot, c.RepoName)
}

// ResolveHost applies environment overrides over the configured host.
func (c *Config) ResolveHost() string {
	if h := os.Getenv(EnvHost); h != "" {
		return h
	}
	if h := os.Getenv("HOST"); h != "" {
		return h
	}
	return c.Host
}

// ResolvePort applies environment overrides over the configured port.
func (c *Config) ResolvePort() int {
	for _, key := range []string{EnvPort, "PORT"} {
		if raw := os.Getenv(key); raw != "" {
			if p, err := strconv.Atoi(raw); err == nil && p > 0 && p <= 65535 {
				return p
			}
		}
	}
	return c.Port
}

// HealthURL is the health endpoint the prober polls. The started server
// binds to the same host/port, so script env and probe always agree.
func (c *Config) HealthURL() string {
	return fmt.Sprintf("http://%s:%d/health", c.ResolveHost(), c.ResolvePort())
}

// ScriptEnv returns the extra environment the control scripts receive.
func (c *Config) ScriptEnv() []string {
	return []string{
		"PAUSE_SECONDS=0",
		EnvPort + "=" + strconv.Itoa(c.ResolvePort()),
		EnvHost + "=" + c.ResolveHost(),
	}
}

// ReadInstallHint loads the persisted install base from dir, if present.
func ReadInstallHint(dir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, InstallHintFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// WriteInstallHint persists the chosen install base next to the config.
func WriteInstallHint(dir, installRoot string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, InstallHintFile), []byte(installRoot+"\n"), 0o600)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "speechd", "config.toml")
	}
	return "config.toml"
}

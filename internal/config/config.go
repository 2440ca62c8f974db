// Package config loads the run configuration from defaults, an optional
// YAML file, the environment and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/v0xg/freshen/internal/browser"
	"github.com/v0xg/freshen/internal/headline"
	"github.com/v0xg/freshen/internal/locator"
	"github.com/v0xg/freshen/internal/logging"
	"github.com/v0xg/freshen/internal/session"
)

// EnvPrefix prefixes every environment override, e.g. FRESHEN_BROWSER_HEADLESS.
const EnvPrefix = "FRESHEN"

// DefaultUserAgent is a current desktop Chrome on Windows.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/144.0.0.0 Safari/537.36"

type Config struct {
	Credentials   CredentialsConfig `mapstructure:"credentials"`
	ProfileURL    string            `mapstructure:"profile_url"`
	SelectorsFile string            `mapstructure:"selectors_file"`
	Browser       BrowserConfig     `mapstructure:"browser"`
	Timing        TimingConfig      `mapstructure:"timing"`
	Diag          DiagConfig        `mapstructure:"diag"`
	Notify        NotifyConfig      `mapstructure:"notify"`
	Log           logging.Config    `mapstructure:"log"`
}

type CredentialsConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type BrowserConfig struct {
	Headless      bool          `mapstructure:"headless"`
	Bin           string        `mapstructure:"bin"`
	UserDataDir   string        `mapstructure:"user_data_dir"`
	UserAgent     string        `mapstructure:"user_agent"`
	Width         int           `mapstructure:"width"`
	Height        int           `mapstructure:"height"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
}

// TimingConfig holds every wait of a run. Waits poll until a condition
// holds; delays are fixed pauses for a page that offers nothing to poll.
type TimingConfig struct {
	LoginFormWait time.Duration `mapstructure:"login_form_wait"`
	RedirectWait  time.Duration `mapstructure:"redirect_wait"`
	EditWait      time.Duration `mapstructure:"edit_wait"`
	FieldWait     time.Duration `mapstructure:"field_wait"`
	SaveWait      time.Duration `mapstructure:"save_wait"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`

	ProfileDelay time.Duration `mapstructure:"profile_delay"`
	RenderDelay  time.Duration `mapstructure:"render_delay"`
	ScrollDelay  time.Duration `mapstructure:"scroll_delay"`
	EditorDelay  time.Duration `mapstructure:"editor_delay"`
	TypeDelay    time.Duration `mapstructure:"type_delay"`
	SaveDelay    time.Duration `mapstructure:"save_delay"`

	MaxSteps int `mapstructure:"max_steps"`
}

type DiagConfig struct {
	Dir string `mapstructure:"dir"`
	// Snapshot captures the profile right before the edit control search.
	Snapshot       bool `mapstructure:"snapshot"`
	ThumbnailWidth uint `mapstructure:"thumbnail_width"`
}

type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ConfigurationError lists every problem found, so a user fixes them in
// one go rather than one per run.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}

// SetDefaults registers every key with its default. Keys must be known to
// viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("credentials.username", "")
	v.SetDefault("credentials.password", "")
	v.SetDefault("profile_url", "https://www.naukri.com/mnjuser/profile")
	v.SetDefault("selectors_file", "")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.bin", "")
	v.SetDefault("browser.user_data_dir", "chrome_profile")
	v.SetDefault("browser.user_agent", DefaultUserAgent)
	v.SetDefault("browser.width", 1920)
	v.SetDefault("browser.height", 1080)
	v.SetDefault("browser.action_timeout", "30s")

	v.SetDefault("timing.login_form_wait", "10s")
	v.SetDefault("timing.redirect_wait", "10s")
	v.SetDefault("timing.edit_wait", "0s")
	v.SetDefault("timing.field_wait", "25s")
	v.SetDefault("timing.save_wait", "5s")
	v.SetDefault("timing.poll_interval", "250ms")
	v.SetDefault("timing.profile_delay", "5s")
	v.SetDefault("timing.render_delay", "8s")
	v.SetDefault("timing.scroll_delay", "1s")
	v.SetDefault("timing.editor_delay", "1s")
	v.SetDefault("timing.type_delay", "500ms")
	v.SetDefault("timing.save_delay", "3s")
	v.SetDefault("timing.max_steps", 4)

	v.SetDefault("diag.dir", "diagnostics")
	v.SetDefault("diag.snapshot", true)
	v.SetDefault("diag.thumbnail_width", 256)

	v.SetDefault("notify.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", false)
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"headless": "browser.headless",
	"profile":  "browser.user_data_dir",
	"diag-dir": "diag.dir",
}

// Load reads the configuration with Read and validates all of it,
// credentials included.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg, err := Read(path, fs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read merges path (when non-empty), the environment and the changed flags
// of fs (which may be nil) over the defaults, without validating.
func Read(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The secrets keep the names the tool has always documented.
	_ = v.BindEnv("credentials.username", EnvPrefix+"_CREDENTIALS_USERNAME", "NAUKRI_USERNAME")
	_ = v.BindEnv("credentials.password", EnvPrefix+"_CREDENTIALS_PASSWORD", "NAUKRI_PASSWORD")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigurationError{Problems: []string{fmt.Sprintf("read %s: %v", path, err)}}
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Problems: []string{err.Error()}}
	}

	if fs != nil {
		if on, err := fs.GetBool("no-notify"); err == nil && on {
			cfg.Notify.Enabled = false
		}
		if on, err := fs.GetBool("verbose"); err == nil && on {
			cfg.Log.Level = "debug"
		}
	}
	return &cfg, nil
}

// Validate checks that the secrets are present and every value is usable.
func (c *Config) Validate() error {
	var problems []string
	if c.Credentials.Username == "" {
		problems = append(problems, "NAUKRI_USERNAME is not set")
	}
	if c.Credentials.Password == "" {
		problems = append(problems, "NAUKRI_PASSWORD is not set")
	}
	if err := c.ValidateSettings(); err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) {
			problems = append(problems, ce.Problems...)
		}
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// ValidateSettings is Validate without the credential checks, for
// subcommands that never log in.
func (c *Config) ValidateSettings() error {
	var problems []string
	if u, err := url.Parse(c.ProfileURL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("profile_url %q is not an absolute URL", c.ProfileURL))
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		problems = append(problems, "browser.width and browser.height must be positive")
	}
	if c.Timing.MaxSteps <= 0 {
		problems = append(problems, "timing.max_steps must be positive")
	}
	for name, d := range map[string]time.Duration{
		"timing.login_form_wait": c.Timing.LoginFormWait,
		"timing.redirect_wait":   c.Timing.RedirectWait,
		"timing.edit_wait":       c.Timing.EditWait,
		"timing.field_wait":      c.Timing.FieldWait,
		"timing.save_wait":       c.Timing.SaveWait,
		"timing.profile_delay":   c.Timing.ProfileDelay,
		"timing.render_delay":    c.Timing.RenderDelay,
		"timing.scroll_delay":    c.Timing.ScrollDelay,
		"timing.editor_delay":    c.Timing.EditorDelay,
		"timing.type_delay":      c.Timing.TypeDelay,
		"timing.save_delay":      c.Timing.SaveDelay,
	} {
		if d < 0 {
			problems = append(problems, name+" must not be negative")
		}
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a level", c.Log.Level))
	}
	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// Catalog loads the selector catalogue, embedded or from SelectorsFile.
func (c *Config) Catalog() (*locator.Catalog, error) {
	cat, err := locator.LoadCatalog(c.SelectorsFile)
	if err != nil {
		return nil, &ConfigurationError{Problems: []string{err.Error()}}
	}
	return cat, nil
}

func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Headless:      c.Browser.Headless,
		Bin:           c.Browser.Bin,
		UserDataDir:   c.Browser.UserDataDir,
		UserAgent:     c.Browser.UserAgent,
		Width:         c.Browser.Width,
		Height:        c.Browser.Height,
		ActionTimeout: c.Browser.ActionTimeout,
	}
}

func (c *Config) LocatorOptions() locator.Options {
	return locator.Options{
		PollInterval: c.Timing.PollInterval,
		ScrollSettle: c.Timing.ScrollDelay,
	}
}

func (c *Config) SessionOptions() session.Options {
	return session.Options{
		ProfileURL:       c.ProfileURL,
		LoginFormTimeout: c.Timing.LoginFormWait,
		RedirectTimeout:  c.Timing.RedirectWait,
		SettleDelay:      c.Timing.ProfileDelay,
		PollInterval:     c.Timing.PollInterval,
		MaxSteps:         c.Timing.MaxSteps,
	}
}

func (c *Config) SessionCredentials() session.Credentials {
	return session.Credentials{Username: c.Credentials.Username, Password: c.Credentials.Password}
}

func (c *Config) HeadlineOptions() headline.Options {
	return headline.Options{TypeDelay: c.Timing.TypeDelay}
}

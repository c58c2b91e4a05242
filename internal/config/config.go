package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix is prepended to every environment variable, e.g. RELAX_MINUTES
const EnvPrefix = "RELAX"

type Config struct {
	Exercise     string        `mapstructure:"exercise"`
	Minutes      int           `mapstructure:"minutes"`
	Rate         string        `mapstructure:"rate"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	IntroDelay   time.Duration `mapstructure:"intro_delay"`
	Token        string        `mapstructure:"token"`
	Encoding     string        `mapstructure:"encoding"`
	ExercisesDir string        `mapstructure:"exercises_dir"`
	ReportOut    string        `mapstructure:"report_out"`
	ReportFormat string        `mapstructure:"report_format"`
	Log          Log           `mapstructure:"log"`
}

type Log struct {
	Level    string `mapstructure:"level"`
	File     string `mapstructure:"file"`
	ToStdout bool   `mapstructure:"to_stdout"`
	JSON     bool   `mapstructure:"json"`
}

var defaults = map[string]any{
	"exercise":      "4-7-8",
	"minutes":       5,
	"rate":          "30hz",
	"host":          "127.0.0.1",
	"port":          8787,
	"intro_delay":   "10s",
	"token":         "",
	"encoding":      "json",
	"exercises_dir": "",
	"report_out":    "",
	"report_format": "json",
	"log.level":     "info",
	"log.file":      "",
	"log.to_stdout": false,
	"log.json":      false,
}

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"exercise":      "exercise",
	"minutes":       "minutes",
	"rate":          "rate",
	"host":          "host",
	"port":          "port",
	"intro":         "intro_delay",
	"token":         "token",
	"encoding":      "encoding",
	"exercises-dir": "exercises_dir",
	"report-out":    "report_out",
	"report-format": "report_format",
	"log-level":     "log.level",
	"log-file":      "log.file",
	"log-stdout":    "log.to_stdout",
	"log-json":      "log.json",
}

// Load resolves the configuration from defaults, the optional YAML file,
// RELAX_* environment variables and finally the flags that were set
// explicitly, later sources winning.
func Load(configFile string, flagSets ...*pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	for _, flags := range flagSets {
		if flags == nil {
			continue
		}
		var bindErr error
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges. It does not check that the exercise exists;
// unknown exercises fall back to the default at lookup time.
func (c *Config) Validate() error {
	var err error
	if c.Minutes <= 0 {
		err = multierr.Append(err, fmt.Errorf("minutes must be positive, got %d", c.Minutes))
	}
	if _, rerr := c.TickInterval(); rerr != nil {
		err = multierr.Append(err, rerr)
	}
	if c.Port <= 0 || c.Port+2 > 65535 {
		err = multierr.Append(err, fmt.Errorf("port %d leaves no room for the SSE and UDP ports", c.Port))
	}
	if c.IntroDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("intro delay must not be negative, got %s", c.IntroDelay))
	}
	switch c.Encoding {
	case "json", "protobuf":
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported encoding: %s", c.Encoding))
	}
	switch c.ReportFormat {
	case "json", "ndjson", "yaml":
	default:
		err = multierr.Append(err, fmt.Errorf("unsupported report format: %s", c.ReportFormat))
	}
	return err
}

// TickInterval converts Rate into the period of the tick loop
func (c *Config) TickInterval() (time.Duration, error) {
	return ParseRate(c.Rate)
}

// ParseRate parses a rate such as "30hz"
func ParseRate(rate string) (time.Duration, error) {
	var hz float64
	if _, err := fmt.Sscanf(strings.ToLower(rate), "%fhz", &hz); err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", rate, err)
	}
	if hz <= 0 || hz > 1000 {
		return 0, fmt.Errorf("rate must lie within (0, 1000]hz, got %q", rate)
	}
	return time.Duration(float64(time.Second) / hz), nil
}

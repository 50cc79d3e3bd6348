package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cwarden/afisha/internal/afisha"
	"github.com/cwarden/afisha/internal/listing"
)

type Config struct {
	// Source settings
	StrapiURL      string
	APIToken       string
	Collection     string
	PageSize       int
	RequestTimeout time.Duration
	FixtureFile    string

	// Display settings
	Locale           listing.Locale
	DatePolicy       afisha.DatePolicy
	TimeFormat       string
	DateFormat       string // empty means the locale's long date
	PlaceholderImage string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// UI settings
	Colors      map[string]string
	KeyBindings map[string]string // key -> action

	// Behavior settings
	AutoRefresh bool // reload when the fixture file changes
}

func DefaultConfig() *Config {
	return &Config{
		StrapiURL:      "http://localhost:1337",
		Collection:     "performances",
		PageSize:       afisha.DefaultPageSize,
		RequestTimeout: 15 * time.Second,

		Locale:           listing.LocaleRU,
		DatePolicy:       afisha.WholeDay,
		TimeFormat:       "15:04",
		PlaceholderImage: "/placeholder.jpg",

		LogFile:  defaultLogFile(),
		LogLevel: slog.LevelInfo,

		Colors: map[string]string{
			"header":  "205",
			"date":    "39",
			"time":    "214",
			"title":   "default",
			"status":  "241",
			"error":   "196",
			"prompt":  "205",
			"footer":  "244",
			"loading": "205",
		},

		KeyBindings: map[string]string{
			"q":      "quit",
			"ctrl+c": "quit",
			"?":      "help",
			"/":      "filter",
			"g":      "goto_date",
			"t":      "today",
			"T":      "tomorrow",
			"x":      "reset",
			"r":      "refresh",
			"j":      "down",
			"down":   "down",
			"k":      "up",
			"up":     "up",
			"pgdown": "page_down",
			"pgup":   "page_up",
			"home":   "top",
			"end":    "bottom",
		},

		AutoRefresh: true,
	}
}

// LoadConfig reads the first config file found on the search path and then
// applies environment overrides.
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	home, _ := os.UserHomeDir()
	configPaths := []string{
		os.Getenv("AFISHA_CONFIG"),
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configPaths = append(configPaths, filepath.Join(xdg, "afisha", "afisharc"))
	}
	if home != "" {
		configPaths = append(configPaths,
			filepath.Join(home, ".config", "afisha", "afisharc"),
			filepath.Join(home, ".afisharc"),
		)
	}

	for _, path := range configPaths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); err == nil {
			if err := config.loadFromFile(path); err != nil {
				return nil, fmt.Errorf("error loading config from %s: %w", path, err)
			}
			break
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv loads .env from the working directory, without overriding the
// real environment, then takes STRAPI_URL and STRAPI_TOKEN from it.
func (c *Config) applyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}

	if v := os.Getenv("STRAPI_URL"); v != "" {
		c.StrapiURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("STRAPI_TOKEN"); v != "" {
		c.APIToken = v
	}
	return nil
}

func (c *Config) loadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		if err := c.parseLine(scanner.Text()); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	return scanner.Err()
}

var (
	setRe   = regexp.MustCompile(`^set\s+(\w+)\s+(.+)$`)
	bindRe  = regexp.MustCompile(`^bind\s+(\S+)\s+(\S+)$`)
	colorRe = regexp.MustCompile(`^color\s+(\w+)\s+(.+)$`)
)

func (c *Config) parseLine(line string) error {
	line = strings.TrimSpace(line)

	// Skip comments and empty lines
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	// set variable value
	if matches := setRe.FindStringSubmatch(line); matches != nil {
		return c.setVariable(matches[1], matches[2])
	}

	// bind key action
	if matches := bindRe.FindStringSubmatch(line); matches != nil {
		c.KeyBindings[matches[1]] = matches[2]
		return nil
	}

	// color element color_spec
	if matches := colorRe.FindStringSubmatch(line); matches != nil {
		c.Colors[matches[1]] = strings.Trim(matches[2], `"'`)
		return nil
	}

	return fmt.Errorf("unknown config line: %s", line)
}

func (c *Config) setVariable(name, value string) error {
	// Remove quotes if present
	value = strings.Trim(strings.TrimSpace(value), `"'`)

	switch name {
	case "strapi_url":
		c.StrapiURL = strings.TrimRight(value, "/")

	case "api_token":
		c.APIToken = value

	case "collection":
		if value == "" || strings.ContainsAny(value, "/?#") {
			return fmt.Errorf("invalid collection: %s", value)
		}
		c.Collection = value

	case "page_size":
		size, err := strconv.Atoi(value)
		if err != nil || size < 1 {
			return fmt.Errorf("invalid page_size: %s", value)
		}
		c.PageSize = size

	case "request_timeout":
		timeout, err := time.ParseDuration(value)
		if err != nil {
			// Try parsing as seconds
			if seconds, err2 := strconv.Atoi(value); err2 == nil {
				timeout = time.Duration(seconds) * time.Second
			} else {
				return fmt.Errorf("invalid request_timeout: %s", value)
			}
		}
		c.RequestTimeout = timeout

	case "fixture_file":
		c.FixtureFile = expandHome(value)

	case "locale":
		locale, err := listing.ParseLocale(value)
		if err != nil {
			return err
		}
		c.Locale = locale

	case "date_policy":
		policy, err := afisha.ParseDatePolicy(value)
		if err != nil {
			return err
		}
		c.DatePolicy = policy

	case "time_format":
		c.TimeFormat = value

	case "date_format":
		c.DateFormat = value

	case "placeholder_image":
		c.PlaceholderImage = value

	case "log_file":
		c.LogFile = expandHome(value)

	case "log_level":
		var level slog.Level
		if err := level.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("invalid log_level: %s", value)
		}
		c.LogLevel = level

	case "auto_refresh":
		c.AutoRefresh = strings.ToLower(value) == "true" || value == "1"

	default:
		return fmt.Errorf("unknown config variable: %s", name)
	}

	return nil
}

// Action returns the action bound to key, if any.
func (c *Config) Action(key string) string {
	return c.KeyBindings[key]
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func defaultLogFile() string {
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "afisha", "afisha.log")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "afisha.log")
	}
	return filepath.Join(home, ".local", "state", "afisha", "afisha.log")
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quotecast/internal/validation"
)

// StoryConfig is the story poster's settings file.
type StoryConfig struct {
	FeedURL  string   `yaml:"feed_url"`
	Times    []string `yaml:"times"`    // "HH:MM", local to Timezone
	Days     string   `yaml:"days"`     // "daily", "*" or "mon,wed,fri"
	Title    string   `yaml:"title"`    // template with "field" placeholders
	Text     string   `yaml:"text"`     // template with "field" placeholders
	Admins   []int64  `yaml:"admins"`   // Telegram user IDs, reported in status
	Accounts []int64  `yaml:"accounts"` // Telegram chat IDs stories are posted to
	Timezone string   `yaml:"timezone,omitempty"`
	// Autostart starts the scheduler when the server boots.
	Autostart bool `yaml:"autostart"`
}

// ClockTime is a time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

var weekdays = map[string]string{
	"mon": "MON", "monday": "MON",
	"tue": "TUE", "tuesday": "TUE",
	"wed": "WED", "wednesday": "WED",
	"thu": "THU", "thursday": "THU",
	"fri": "FRI", "friday": "FRI",
	"sat": "SAT", "saturday": "SAT",
	"sun": "SUN", "sunday": "SUN",
}

// LoadStoryConfig loads the story settings file.
// Returns nil without error if the file doesn't exist.
func LoadStoryConfig(path string) (*StoryConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Story poster is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg StoryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Set defaults
	if cfg.Days == "" {
		cfg.Days = "daily"
	}
	if cfg.Title == "" {
		cfg.Title = `"name"`
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the feed URL, times, days and timezone.
func (c *StoryConfig) Validate() error {
	if c.FeedURL == "" {
		return errors.New("feed_url is required")
	}
	if ok, msg := validation.ValidateURL(c.FeedURL); !ok {
		return fmt.Errorf("invalid feed_url: %s", msg)
	}
	if _, err := c.ParseTimes(); err != nil {
		return err
	}
	if _, err := c.CronDays(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// ParseTimes returns the posting times.
func (c *StoryConfig) ParseTimes() ([]ClockTime, error) {
	if len(c.Times) == 0 {
		return nil, errors.New("at least one posting time is required")
	}
	times := make([]ClockTime, 0, len(c.Times))
	for _, raw := range c.Times {
		t, err := parseClockTime(raw)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, nil
}

func parseClockTime(raw string) (ClockTime, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return ClockTime{}, fmt.Errorf("invalid time %q: want HH:MM", raw)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return ClockTime{Hour: hour, Minute: minute}, nil
}

// CronDays returns the day-of-week field of a cron spec.
func (c *StoryConfig) CronDays() (string, error) {
	days := strings.ToLower(strings.TrimSpace(c.Days))
	if days == "" || days == "daily" || days == "*" {
		return "*", nil
	}
	var out []string
	for _, d := range strings.Split(days, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		cd, ok := weekdays[d]
		if !ok {
			return "", fmt.Errorf("invalid day %q", d)
		}
		out = append(out, cd)
	}
	if len(out) == 0 {
		return "*", nil
	}
	return strings.Join(out, ","), nil
}

// Location returns the configured timezone, defaulting to local time.
func (c *StoryConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

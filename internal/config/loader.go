package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the
// reservation service.
type Config struct {
	SQLiteDSN       string
	MinimumDuration time.Duration
	ExpiryInterval  time.Duration
	OpeningStart    string
	OpeningEnd      string
	EventBuffer     int
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; invalid values are accumulated and
// reported together so operators see every problem at once.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN:       "file:reservations.db?_txlock=immediate&_foreign_keys=on",
		MinimumDuration: 30 * time.Minute,
		ExpiryInterval:  5 * time.Minute,
		OpeningStart:    "08:00",
		OpeningEnd:      "20:00",
		EventBuffer:     64,
	}

	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("RESERVATION_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if value := strings.TrimSpace(os.Getenv("RESERVATION_MIN_DURATION")); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, "RESERVATION_MIN_DURATION")
		} else {
			cfg.MinimumDuration = d
		}
	}

	if value := strings.TrimSpace(os.Getenv("RESERVATION_EXPIRY_INTERVAL")); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, "RESERVATION_EXPIRY_INTERVAL")
		} else {
			cfg.ExpiryInterval = d
		}
	}

	if value := strings.TrimSpace(os.Getenv("RESERVATION_OPENING_START")); value != "" {
		if !validClockTime(value) {
			invalid = append(invalid, "RESERVATION_OPENING_START")
		} else {
			cfg.OpeningStart = value
		}
	}

	if value := strings.TrimSpace(os.Getenv("RESERVATION_OPENING_END")); value != "" {
		if !validClockTime(value) {
			invalid = append(invalid, "RESERVATION_OPENING_END")
		} else {
			cfg.OpeningEnd = value
		}
	}

	if value := strings.TrimSpace(os.Getenv("RESERVATION_EVENT_BUFFER")); value != "" {
		size, err := strconv.Atoi(value)
		if err != nil || size <= 0 {
			invalid = append(invalid, "RESERVATION_EVENT_BUFFER")
		} else {
			cfg.EventBuffer = size
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func validClockTime(value string) bool {
	_, err := time.Parse("15:04", value)
	return err == nil
}

// Package config handles tool configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/multierr"
)

// ErrUnknownMap is returned when the selected map id is not configured.
var ErrUnknownMap = errors.New("unknown map id")

// Config holds all settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Decode  DecodeConfig  `yaml:"decode"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds game data file locations.
type DataConfig struct {
	BasePath    string     `yaml:"base_path"`    // Directory holding .gmp and .sty files
	SelectedMap string     `yaml:"selected_map"` // ID of the map loaded by default
	Maps        []MapEntry `yaml:"maps"`
}

// MapEntry pairs a map file with the style file it is drawn with.
type MapEntry struct {
	ID    string `yaml:"id"`
	Map   string `yaml:"map"`
	Style string `yaml:"style"`
}

// DecodeConfig holds decoder settings.
type DecodeConfig struct {
	Strict bool `yaml:"strict"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			BasePath:    "data",
			SelectedMap: "wil",
			Maps: []MapEntry{
				{ID: "wil", Map: "wil.gmp", Style: "wil.sty"},
				{ID: "ste", Map: "ste.gmp", Style: "ste.sty"},
				{ID: "bil", Map: "bil.gmp", Style: "bil.sty"},
			},
		},
		Decode: DecodeConfig{
			Strict: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Entry returns the map entry with the given id.
func (c *Config) Entry(id string) (MapEntry, error) {
	for _, e := range c.Data.Maps {
		if e.ID == id {
			return e, nil
		}
	}
	return MapEntry{}, fmt.Errorf("%w: %q", ErrUnknownMap, id)
}

// SelectedEntry returns the entry named by Data.SelectedMap.
func (c *Config) SelectedEntry() (MapEntry, error) {
	return c.Entry(c.Data.SelectedMap)
}

// MapPath returns the full path of the entry's map file.
func (c *Config) MapPath(e MapEntry) string {
	return filepath.Join(c.Data.BasePath, e.Map)
}

// StylePath returns the full path of the entry's style file.
func (c *Config) StylePath(e MapEntry) string {
	return filepath.Join(c.Data.BasePath, e.Style)
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var err error

	if c.Data.BasePath == "" {
		err = multierr.Append(err, errors.New("data.base_path is empty"))
	}

	seen := make(map[string]bool)
	for i, e := range c.Data.Maps {
		if e.ID == "" {
			err = multierr.Append(err, fmt.Errorf("data.maps[%d]: id is empty", i))
		} else if seen[e.ID] {
			err = multierr.Append(err, fmt.Errorf("data.maps[%d]: duplicate id %q", i, e.ID))
		}
		seen[e.ID] = true

		if e.Map == "" {
			err = multierr.Append(err, fmt.Errorf("data.maps[%d]: map file is empty", i))
		}
		if e.Style == "" {
			err = multierr.Append(err, fmt.Errorf("data.maps[%d]: style file is empty", i))
		}
	}

	if c.Data.SelectedMap != "" && !seen[c.Data.SelectedMap] {
		err = multierr.Append(err, fmt.Errorf("data.selected_map: %w: %q", ErrUnknownMap, c.Data.SelectedMap))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}

	return err
}

// Package config loads the relay's YAML configuration file, per spec.md
// §6: the HL2-facing interface name, the Wi-Fi-facing interface name, and
// the target buffering delay in milliseconds.
//
// Grounded on the teacher's routing-config loader (clients/hpsdr/main.go),
// which reads a YAML file with gopkg.in/yaml.v3 into a plain struct and
// fails the whole program on a parse error.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// nativePeriodMillis is the native inter-packet period P at 48 kHz used to
// convert a millisecond delay into a frame count (spec.md §3, §6).
const nativePeriodMillis = 2.625

// maxDelayMillis is the clamp ceiling for buffer_milliseconds (spec.md §6).
const maxDelayMillis = 4000

// Config is the parsed contents of the relay's YAML configuration file.
type Config struct {
	HL2Interface       string `yaml:"hl2_interface"`
	WifiInterface      string `yaml:"wifi_interface"`
	BufferMilliseconds int    `yaml:"buffer_milliseconds"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &c, nil
}

// Used converts the configured delay into the jitter buffer's target
// frame count, per spec.md §6: "Delay is clamped to [0, 4000]; used =
// round(delay/2.625), raised to 8 when positive and < 8, set to 0 only to
// select pass-through."
func (c *Config) Used() int {
	delay := c.BufferMilliseconds
	if delay < 0 {
		delay = 0
	}
	if delay > maxDelayMillis {
		delay = maxDelayMillis
	}
	if delay == 0 {
		return 0
	}

	used := int(float64(delay)/nativePeriodMillis + 0.5)
	if used < 8 {
		used = 8
	}
	return used
}

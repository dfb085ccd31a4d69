// Package config handles device configuration parsing and location
// resolution.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the parsed device configuration. Credentials never live
// here — they come from the separate secrets file, which is excluded
// from updates and backups by policy.
type Config struct {
	Device  Device  `yaml:"device" toml:"device" json:"device"`
	MQTT    MQTT    `yaml:"mqtt" toml:"mqtt" json:"mqtt"`
	Update  Update  `yaml:"update" toml:"update" json:"update"`
	GitHub  GitHub  `yaml:"github" toml:"github" json:"github"`
	SD      SD      `yaml:"sd" toml:"sd" json:"sd"`
	Pins    Pins    `yaml:"pins" toml:"pins" json:"pins"`
	Sensors Sensors `yaml:"sensors" toml:"sensors" json:"sensors"`
}

// Device identifies this device on the home-automation bus.
type Device struct {
	Name string `yaml:"name" toml:"name" json:"name"`
	ID   string `yaml:"id" toml:"id" json:"id"`
}

// MQTT configures the broker connection and topic layout.
type MQTT struct {
	Broker          string `yaml:"broker" toml:"broker" json:"broker"`
	Port            int    `yaml:"port" toml:"port" json:"port"`
	SSL             bool   `yaml:"ssl" toml:"ssl" json:"ssl"`
	TopicPrefix     string `yaml:"topic_prefix" toml:"topic_prefix" json:"topic_prefix"`
	PublishEveryMS  int    `yaml:"publish_every_ms" toml:"publish_every_ms" json:"publish_every_ms"`
	ReconnectDelayS int    `yaml:"reconnect_delay_s" toml:"reconnect_delay_s" json:"reconnect_delay_s"`
}

// PublishEvery returns the sensor publish interval.
func (m MQTT) PublishEvery() time.Duration {
	return time.Duration(m.PublishEveryMS) * time.Millisecond
}

// ReconnectDelay returns the broker reconnect backoff.
func (m MQTT) ReconnectDelay() time.Duration {
	return time.Duration(m.ReconnectDelayS) * time.Second
}

// Update configures the firmware tree and the supervisor's reserved
// locations.
type Update struct {
	FirmwareRoot string   `yaml:"firmware_root" toml:"firmware_root" json:"firmware_root"`
	VersionFile  string   `yaml:"version_file" toml:"version_file" json:"version_file"`
	BackupDir    string   `yaml:"backup_dir" toml:"backup_dir" json:"backup_dir"`
	SecretsFile  string   `yaml:"secrets_file" toml:"secrets_file" json:"secrets_file"`
	Extensions   []string `yaml:"extensions" toml:"extensions" json:"extensions"`
}

// GitHub names the release repository consulted for network updates.
// Both fields empty disables the network source.
type GitHub struct {
	Owner string `yaml:"owner" toml:"owner" json:"owner"`
	Repo  string `yaml:"repo" toml:"repo" json:"repo"`
}

// SD locates the removable-storage update directory. Empty mount
// disables the local source.
type SD struct {
	Mount     string `yaml:"mount" toml:"mount" json:"mount"`
	UpdateDir string `yaml:"update_dir" toml:"update_dir" json:"update_dir"`
}

// Pins maps GPIO assignments.
type Pins struct {
	UpdateButton string `yaml:"update_button" toml:"update_button" json:"update_button"`
	StatusLED    string `yaml:"status_led" toml:"status_led" json:"status_led"`
}

// Sensors configures which readers the bridge publishes.
type Sensors struct {
	CPUTemp bool          `yaml:"cpu_temp" toml:"cpu_temp" json:"cpu_temp"`
	DS18B20 []string      `yaml:"ds18b20" toml:"ds18b20" json:"ds18b20"`
	Current CurrentSensor `yaml:"current" toml:"current" json:"current"`
}

// CurrentSensor configures the ADS1115-backed current channels.
type CurrentSensor struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled" json:"enabled"`
	Bus         int     `yaml:"bus" toml:"bus" json:"bus"`
	Address     int     `yaml:"address" toml:"address" json:"address"`
	Channels    int     `yaml:"channels" toml:"channels" json:"channels"`
	Sensitivity float64 `yaml:"sensitivity" toml:"sensitivity" json:"sensitivity"`
	ZeroPoint   float64 `yaml:"zero_point" toml:"zero_point" json:"zero_point"`
}

// Secrets holds the credentials loaded from the secrets file. The file
// itself is never part of a manifest, a Backup Set, or a live write.
type Secrets struct {
	MQTTUser     string `toml:"mqtt_user"`
	MQTTPassword string `toml:"mqtt_password"`
	GitHubToken  string `toml:"github_token"`
}

// VersionPath returns the configured version marker path, defaulting
// to <firmware root>/.version.
func (c *Config) VersionPath() string {
	if c.Update.VersionFile != "" {
		return c.Update.VersionFile
	}
	return filepath.Join(c.Update.FirmwareRoot, ".version")
}

// BackupPath returns the configured Backup Set directory, defaulting
// to <firmware root>/.backup.
func (c *Config) BackupPath() string {
	if c.Update.BackupDir != "" {
		return c.Update.BackupDir
	}
	return filepath.Join(c.Update.FirmwareRoot, ".backup")
}

// SecretsPath returns the absolute path of the secrets file.
func (c *Config) SecretsPath() string {
	if filepath.IsAbs(c.Update.SecretsFile) {
		return c.Update.SecretsFile
	}
	return filepath.Join(c.Update.FirmwareRoot, c.Update.SecretsFile)
}

// SDUpdateDir returns the removable-storage update directory,
// defaulting to <mount>/update.
func (c *Config) SDUpdateDir() string {
	if c.SD.UpdateDir != "" {
		return c.SD.UpdateDir
	}
	return filepath.Join(c.SD.Mount, "update")
}

// Reserved lists the file names the supervisor must never write live
// or include in a Backup Set.
func (c *Config) Reserved() []string {
	return []string{
		filepath.Base(c.SecretsPath()),
		filepath.Base(c.VersionPath()),
	}
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Device.Name == "" {
		c.Device.Name = "picobridge"
	}
	if c.Device.ID == "" {
		c.Device.ID = "picobridge"
	}
	if c.MQTT.Port == 0 {
		if c.MQTT.SSL {
			c.MQTT.Port = 8883
		} else {
			c.MQTT.Port = 1883
		}
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "homeassistant"
	}
	if c.MQTT.PublishEveryMS == 0 {
		c.MQTT.PublishEveryMS = 1000
	}
	if c.MQTT.ReconnectDelayS == 0 {
		c.MQTT.ReconnectDelayS = 5
	}
	if c.Update.SecretsFile == "" {
		c.Update.SecretsFile = "secrets.toml"
	}
	if c.SD.Mount == "" {
		c.SD.Mount = "/media/sd"
	}
	if c.Pins.UpdateButton == "" {
		c.Pins.UpdateButton = "10"
	}
	if c.Sensors.Current.Bus == 0 {
		c.Sensors.Current.Bus = 1
	}
	if c.Sensors.Current.Channels == 0 {
		c.Sensors.Current.Channels = 4
	}
	if c.Sensors.Current.Sensitivity == 0 {
		c.Sensors.Current.Sensitivity = 0.066 // V/A, 66 mV/A parts
	}
	if c.Sensors.Current.ZeroPoint == 0 {
		c.Sensors.Current.ZeroPoint = 1.65 // V at zero current
	}
}

// Find searches for the configuration file in the standard locations.
// Returns the path of the first file found, or an error if none
// exists.
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv("PICOBRIDGE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	searchDirs := []string{"/etc/picobridge"}
	if home, err := os.UserHomeDir(); err == nil {
		xdgConfig := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfig == "" {
			xdgConfig = filepath.Join(home, ".config")
		}
		searchDirs = append(searchDirs, filepath.Join(xdgConfig, "picobridge"))
	}
	searchDirs = append(searchDirs, ".")

	fileNames := []string{
		"picobridge.toml",
		"picobridge.yaml",
		"picobridge.yml",
		"picobridge.json",
	}

	for _, dir := range searchDirs {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("no config file found in standard locations")
}

// Load reads, parses, defaults, and validates the config at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

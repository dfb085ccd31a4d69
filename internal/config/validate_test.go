package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	c := &Config{}
	c.Update.FirmwareRoot = "/opt/picobridge"
	c.applyDefaults()
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "minimal valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing firmware root",
			mutate:  func(c *Config) { c.Update.FirmwareRoot = "" },
			wantErr: "firmware_root",
		},
		{
			name:    "github owner without repo",
			mutate:  func(c *Config) { c.GitHub.Owner = "exploreborders" },
			wantErr: "github",
		},
		{
			name:    "github repo without owner",
			mutate:  func(c *Config) { c.GitHub.Repo = "picobridge" },
			wantErr: "github",
		},
		{
			name: "github pair is valid",
			mutate: func(c *Config) {
				c.GitHub.Owner = "exploreborders"
				c.GitHub.Repo = "picobridge"
			},
		},
		{
			name:    "non-numeric pin",
			mutate:  func(c *Config) { c.Pins.UpdateButton = "GP10" },
			wantErr: "pins.update_button",
		},
		{
			name: "bad mqtt port",
			mutate: func(c *Config) {
				c.MQTT.Broker = "broker.local"
				c.MQTT.Port = 70000
			},
			wantErr: "mqtt.port",
		},
		{
			name:    "extension without dot",
			mutate:  func(c *Config) { c.Update.Extensions = []string{"bin"} },
			wantErr: "update.extensions[0]",
		},
		{
			name: "current sensor channel range",
			mutate: func(c *Config) {
				c.Sensors.Current.Enabled = true
				c.Sensors.Current.Channels = 9
			},
			wantErr: "sensors.current.channels",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := Validate(c)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestReserved(t *testing.T) {
	c := validConfig()

	reserved := c.Reserved()
	want := map[string]bool{"secrets.toml": true, ".version": true}
	for _, name := range reserved {
		if !want[name] {
			t.Errorf("Reserved() contains unexpected %q", name)
		}
		delete(want, name)
	}
	for name := range want {
		t.Errorf("Reserved() missing %q", name)
	}
}

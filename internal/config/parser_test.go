package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    Format
	}{
		{
			name: "toml extension",
			path: "picobridge.toml",
			want: FormatTOML,
		},
		{
			name: "yaml extension",
			path: "picobridge.yaml",
			want: FormatYAML,
		},
		{
			name: "yml extension",
			path: "picobridge.yml",
			want: FormatYAML,
		},
		{
			name: "json extension",
			path: "picobridge.json",
			want: FormatJSON,
		},
		{
			name:    "sniffed json",
			path:    "config",
			content: `{"device": {"id": "pico"}}`,
			want:    FormatJSON,
		},
		{
			name:    "sniffed toml",
			path:    "config",
			content: "[device]\nid = \"pico\"\n",
			want:    FormatTOML,
		},
		{
			name:    "sniffed yaml",
			path:    "config",
			content: "device:\n  id: pico\n",
			want:    FormatYAML,
		},
		{
			name: "unknown",
			path: "config",
			want: FormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(tt.path, []byte(tt.content)); got != tt.want {
				t.Errorf("detectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("PICOBRIDGE_TEST_OWNER", "exploreborders")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "set variable",
			input: `owner = "${PICOBRIDGE_TEST_OWNER}"`,
			want:  `owner = "exploreborders"`,
		},
		{
			name:  "unset variable with default",
			input: `mount = "${PICOBRIDGE_TEST_UNSET:-/media/sd}"`,
			want:  `mount = "/media/sd"`,
		},
		{
			name:  "unset variable without default",
			input: `token = "${PICOBRIDGE_TEST_UNSET}"`,
			want:  `token = ""`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(expandEnvVars([]byte(tt.input))); got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picobridge.toml")
	content := `
[device]
name = "Pico Bridge"
id = "pico2w"

[mqtt]
broker = "homeassistant.local"
ssl = true

[update]
firmware_root = "/opt/picobridge"
extensions = [".bin", ".cfg"]

[github]
owner = "exploreborders"
repo = "picobridge"

[sd]
mount = "/media/sd"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "pico2w" {
		t.Errorf("Device.ID = %q, want pico2w", cfg.Device.ID)
	}
	if cfg.MQTT.Port != 8883 {
		t.Errorf("MQTT.Port = %d, want TLS default 8883", cfg.MQTT.Port)
	}
	if got := cfg.VersionPath(); got != "/opt/picobridge/.version" {
		t.Errorf("VersionPath() = %q", got)
	}
	if got := cfg.BackupPath(); got != "/opt/picobridge/.backup" {
		t.Errorf("BackupPath() = %q", got)
	}
	if got := cfg.SDUpdateDir(); got != "/media/sd/update" {
		t.Errorf("SDUpdateDir() = %q", got)
	}
	if len(cfg.Update.Extensions) != 2 {
		t.Errorf("Extensions = %v, want 2 entries", cfg.Update.Extensions)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picobridge.yaml")
	content := `
device:
  id: pico2w
update:
  firmware_root: /opt/picobridge
github:
  owner: exploreborders
  repo: picobridge
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GitHub.Owner != "exploreborders" {
		t.Errorf("GitHub.Owner = %q", cfg.GitHub.Owner)
	}
	if cfg.Update.SecretsFile != "secrets.toml" {
		t.Errorf("SecretsFile = %q, want default secrets.toml", cfg.Update.SecretsFile)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "picobridge.toml")
	// firmware_root missing
	if err := os.WriteFile(path, []byte("[device]\nid = \"x\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want validation error")
	}
}

func TestLoadSecrets(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file yields empty secrets", func(t *testing.T) {
		s, err := LoadSecrets(filepath.Join(dir, "absent.toml"))
		if err != nil {
			t.Fatalf("LoadSecrets() error = %v", err)
		}
		if s.GitHubToken != "" || s.MQTTUser != "" {
			t.Errorf("LoadSecrets() = %+v, want zero value", s)
		}
	})

	t.Run("reads credentials", func(t *testing.T) {
		path := filepath.Join(dir, "secrets.toml")
		content := "mqtt_user = \"ha\"\nmqtt_password = \"hunter2\"\ngithub_token = \"ghp_abc\"\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		s, err := LoadSecrets(path)
		if err != nil {
			t.Fatalf("LoadSecrets() error = %v", err)
		}
		if s.MQTTUser != "ha" || s.MQTTPassword != "hunter2" || s.GitHubToken != "ghp_abc" {
			t.Errorf("LoadSecrets() = %+v", s)
		}
	})
}

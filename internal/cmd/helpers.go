package cmd

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/exploreborders/picobridge/internal/backup"
	"github.com/exploreborders/picobridge/internal/config"
	"github.com/exploreborders/picobridge/internal/fwversion"
	"github.com/exploreborders/picobridge/internal/source"
	"github.com/exploreborders/picobridge/internal/supervisor"
)

// loadConfig resolves, parses, and validates the config file, then
// loads the adjacent secrets file. A missing secrets file is not an
// error; the device simply runs without credentials.
func loadConfig() (*config.Config, config.Secrets, error) {
	path, err := config.Find(configPath)
	if err != nil {
		return nil, config.Secrets{}, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, config.Secrets{}, err
	}

	secrets, err := config.LoadSecrets(cfg.SecretsPath())
	if err != nil {
		return nil, config.Secrets{}, fmt.Errorf("failed to load secrets: %w", err)
	}

	return cfg, *secrets, nil
}

// buildSources assembles the configured update sources in priority
// order: network first, removable storage second.
func buildSources(cfg *config.Config, secrets config.Secrets, logger *slog.Logger) []source.Source {
	exclude := cfg.Reserved()

	var sources []source.Source
	if cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
		gh := source.NewGitHub(cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.Update.Extensions, exclude, logger)
		if secrets.GitHubToken != "" {
			gh = gh.WithToken(secrets.GitHubToken)
		}
		sources = append(sources, gh)
	}
	if cfg.SD.Mount != "" {
		sources = append(sources, source.NewLocal(cfg.SDUpdateDir(), exclude, logger))
	}
	return sources
}

// buildSupervisor wires the version store, backup manager, and sources
// into a supervisor that reboots through the given hook.
func buildSupervisor(cfg *config.Config, secrets config.Secrets, reboot func() error, logger *slog.Logger) *supervisor.Supervisor {
	store := fwversion.NewStore(cfg.VersionPath())
	backups := backup.NewManager(cfg.Update.FirmwareRoot, cfg.BackupPath(), cfg.Reserved(), logger)
	sources := buildSources(cfg, secrets, logger)

	return supervisor.New(store, backups, sources, cfg.Update.FirmwareRoot, cfg.Reserved(), reboot, logger)
}

// rebootSystem flushes filesystem buffers and asks the kernel to
// restart. Requires CAP_SYS_BOOT.
func rebootSystem() error {
	unix.Sync()
	if err := unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART); err != nil {
		return fmt.Errorf("reboot failed: %w", err)
	}
	return nil
}

// noReboot substitutes for rebootSystem in dry runs.
func noReboot() error { return nil }

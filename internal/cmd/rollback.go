package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/exploreborders/picobridge/internal/backup"
	"github.com/exploreborders/picobridge/internal/fwversion"
	"github.com/exploreborders/picobridge/internal/trigger"
)

var rollbackNoRestart bool

func newRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the previous firmware from the backup set",
		Long: `Rollback restores every file saved in the backup set onto the live
firmware tree, clears the version marker so the next update re-applies
cleanly, and reboots. It does what the double press of the update
button does, without the button.

Fails when no backup set exists; there is nothing to roll back to
after a committed update.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback()
		},
	}

	cmd.Flags().BoolVar(&rollbackNoRestart, "no-restart", false, "Restore without rebooting afterwards")

	return cmd
}

func runRollback() error {
	logger := slog.Default()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store := fwversion.NewStore(cfg.VersionPath())
	backups := backup.NewManager(cfg.Update.FirmwareRoot, cfg.BackupPath(), cfg.Reserved(), logger)

	reboot := rebootSystem
	if rollbackNoRestart {
		reboot = noReboot
	}

	if !backups.Exists() {
		return fmt.Errorf("no backup set to restore")
	}
	if !trigger.Rollback(backups, store, reboot, logger) {
		return fmt.Errorf("rollback incomplete, check the firmware tree")
	}
	return nil
}

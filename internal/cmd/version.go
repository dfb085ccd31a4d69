package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/exploreborders/picobridge/internal/fwversion"
)

func newVersionCmd(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show binary and firmware version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("picobridge %s (commit %s, built %s)\n", version, commit, date)

			cfg, _, err := loadConfig()
			if err != nil {
				// No config is fine here; the binary version alone is
				// still useful on a fresh device.
				slog.Default().Debug("no config for firmware version", "error", err)
				return nil
			}

			current, ok := fwversion.NewStore(cfg.VersionPath()).Read()
			if !ok {
				fmt.Println("firmware version: none recorded")
				return nil
			}
			fmt.Printf("firmware version: %s\n", current)
			return nil
		},
	}
}

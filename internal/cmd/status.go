package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/exploreborders/picobridge/internal/backup"
	"github.com/exploreborders/picobridge/internal/fwversion"
	"github.com/exploreborders/picobridge/internal/output"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show firmware version and update source state",
		Long: `Status reports the current firmware version, whether an interrupted
update left a backup set behind, and which update sources are
reachable right now.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

// sourceStatus is one probed source in the status report.
type sourceStatus struct {
	Name      string `json:"name" yaml:"name"`
	Available bool   `json:"available" yaml:"available"`
	Latest    string `json:"latest,omitempty" yaml:"latest,omitempty"`
}

// statusReport is the full device status.
type statusReport struct {
	Version   string         `json:"version" yaml:"version"`
	HasBackup bool           `json:"has_backup" yaml:"has_backup"`
	Sources   []sourceStatus `json:"sources" yaml:"sources"`
}

func (r statusReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Firmware version: %s\n", r.Version)
	if r.HasBackup {
		b.WriteString("Backup set: present (interrupted update or pending rollback)\n")
	} else {
		b.WriteString("Backup set: none\n")
	}
	for _, s := range r.Sources {
		state := "unreachable"
		if s.Available {
			state = "available"
			if s.Latest != "" {
				state = fmt.Sprintf("available, latest %s", s.Latest)
			}
		}
		fmt.Fprintf(&b, "Source %s: %s\n", s.Name, state)
	}
	return strings.TrimRight(b.String(), "\n")
}

func runStatus() error {
	logger := slog.Default()

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	store := fwversion.NewStore(cfg.VersionPath())
	current, _ := store.Read()
	backups := backup.NewManager(cfg.Update.FirmwareRoot, cfg.BackupPath(), cfg.Reserved(), logger)

	report := statusReport{
		Version:   current.String(),
		HasBackup: backups.Exists(),
	}

	for _, src := range buildSources(cfg, secrets, logger) {
		st := sourceStatus{Name: src.Name(), Available: src.Available()}
		if st.Available {
			if latest, ok := src.LatestVersion(); ok {
				st.Latest = latest.String()
			}
		}
		report.Sources = append(report.Sources, st)
	}

	return output.NewWriter(os.Stdout, format).Write(report)
}

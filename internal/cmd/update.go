package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/exploreborders/picobridge/internal/config"
	"github.com/exploreborders/picobridge/internal/fwversion"
	"github.com/exploreborders/picobridge/internal/output"
	"github.com/exploreborders/picobridge/internal/supervisor"
)

var (
	checkOnly bool
	noRestart bool
)

func newUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and apply a firmware update",
		Long: `Update probes the configured sources in priority order and applies the
first strictly newer version it finds. A successful update reboots the
device; any failure rolls the firmware tree back to its pre-update
state and exits normally.

Examples:
  picobridge update            # Apply an update if one is available
  picobridge update --check    # Report availability without applying
  picobridge update --no-restart  # Apply but skip the reboot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate()
		},
	}

	cmd.Flags().BoolVar(&checkOnly, "check", false, "Check for updates without applying")
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "Apply without rebooting afterwards")

	return cmd
}

// updateReport is the machine-readable outcome of a check or an apply.
type updateReport struct {
	Applied   bool   `json:"applied" yaml:"applied"`
	Available bool   `json:"available" yaml:"available"`
	Source    string `json:"source,omitempty" yaml:"source,omitempty"`
	Current   string `json:"current" yaml:"current"`
	Latest    string `json:"latest,omitempty" yaml:"latest,omitempty"`
	Files     int    `json:"files,omitempty" yaml:"files,omitempty"`
}

func (r updateReport) String() string {
	if r.Applied {
		return fmt.Sprintf("Updated %s -> %s from %s (%d files)", r.Current, r.Latest, r.Source, r.Files)
	}
	if r.Available {
		return fmt.Sprintf("Update available: %s -> %s from %s", r.Current, r.Latest, r.Source)
	}
	return fmt.Sprintf("Up to date at %s", r.Current)
}

func runUpdate() error {
	logger := slog.Default()

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	writer := output.NewWriter(os.Stdout, format)

	if checkOnly {
		return writer.Write(checkSources(cfg, secrets, logger))
	}

	reboot := rebootSystem
	if noRestart {
		reboot = noReboot
	}

	result := buildSupervisor(cfg, secrets, reboot, logger).Run()
	return writer.Write(reportFrom(result))
}

// reportFrom converts a supervisor outcome into the command report.
// An update the supervisor found but rolled back is still reported as
// available, not as up to date.
func reportFrom(result supervisor.Result) updateReport {
	report := updateReport{
		Applied:   result.Applied,
		Available: result.Found,
		Current:   result.From.String(),
		Files:     result.FilesApplied,
	}
	if result.Found {
		report.Source = result.Source
		report.Latest = result.To.String()
	}
	return report
}

// checkSources probes without touching the firmware tree.
func checkSources(cfg *config.Config, secrets config.Secrets, logger *slog.Logger) updateReport {
	store := fwversion.NewStore(cfg.VersionPath())
	current, _ := store.Read()

	report := updateReport{Current: current.String()}
	for _, src := range buildSources(cfg, secrets, logger) {
		if !src.Available() {
			continue
		}
		latest, ok := src.LatestVersion()
		if !ok || !latest.IsNewerThan(current) {
			continue
		}
		report.Available = true
		report.Source = src.Name()
		report.Latest = latest.String()
		break
	}
	return report
}

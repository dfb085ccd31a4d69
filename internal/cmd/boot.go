package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gobot.io/x/gobot/v2"
	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/exploreborders/picobridge/internal/backup"
	"github.com/exploreborders/picobridge/internal/bridge"
	"github.com/exploreborders/picobridge/internal/config"
	"github.com/exploreborders/picobridge/internal/feedback"
	"github.com/exploreborders/picobridge/internal/fwversion"
	"github.com/exploreborders/picobridge/internal/sensors"
	"github.com/exploreborders/picobridge/internal/trigger"
)

var brokerAttempts int

func newBootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Run the full boot sequence",
		Long: `Boot runs the device's startup sequence in order: check the update
button for the double-press rollback gesture, give each configured
update source one chance to apply a newer firmware version, then start
the sensor bridge. An applied update or a triggered rollback ends in a
reboot instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoot()
		},
	}

	cmd.Flags().IntVar(&brokerAttempts, "broker-attempts", 12, "Connection attempts before giving up on the broker")

	return cmd
}

func runBoot() error {
	logger := slog.Default()

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}

	r := raspi.NewAdaptor()
	if err := r.Connect(); err != nil {
		return fmt.Errorf("failed to initialize gpio: %w", err)
	}

	blinker := bootBlinker(cfg, r)
	blinker.Pattern("1")

	// Rollback gesture first: a double press on the update button
	// restores the previous firmware before anything else runs.
	detector := trigger.NewDetector(trigger.GPIOSampler(r, cfg.Pins.UpdateButton))
	if detector.Detect() {
		logger.Info("rollback gesture detected")
		blinker.Pattern("010")
		store := fwversion.NewStore(cfg.VersionPath())
		backups := backup.NewManager(cfg.Update.FirmwareRoot, cfg.BackupPath(), cfg.Reserved(), logger)
		if trigger.Rollback(backups, store, rebootSystem, logger) {
			return nil // reboot in progress
		}
		logger.Warn("nothing to roll back to, continuing boot")
	}

	sup := buildSupervisor(cfg, secrets, rebootSystem, logger).
		WithNotifier(blinker.Pattern)
	result := sup.Run()
	if result.Applied {
		return nil // reboot in progress
	}

	readers, devices := buildReaders(cfg, r, logger)
	if len(readers) == 0 {
		logger.Warn("no sensors configured, bridge will only serve the led switch")
	}

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("no mqtt broker configured")
	}
	if !bridge.WaitForBroker(cfg, secrets, brokerAttempts, logger) {
		blinker.Pattern("111")
		return fmt.Errorf("broker unreachable after %d attempts", brokerAttempts)
	}

	blinker.Pattern("11")
	return bridge.New(cfg, secrets, readers, logger).Run(r, devices...)
}

// bootBlinker returns the LED feedback hook, or a disabled one when no
// status LED is wired.
func bootBlinker(cfg *config.Config, r *raspi.Adaptor) *feedback.Blinker {
	if cfg.Pins.StatusLED == "" {
		return feedback.NewBlinker(feedback.NoopLED{})
	}
	return feedback.NewBlinker(pinLED{w: r, pin: cfg.Pins.StatusLED})
}

// pinLED drives a bare GPIO pin as the feedback LED.
type pinLED struct {
	w   digitalWriter
	pin string
}

type digitalWriter interface {
	DigitalWrite(pin string, level byte) error
}

func (l pinLED) On() error  { return l.w.DigitalWrite(l.pin, 1) }
func (l pinLED) Off() error { return l.w.DigitalWrite(l.pin, 0) }

// buildReaders assembles the configured sensor set. Devices that need
// the robot lifecycle (the ADC driver) are returned alongside.
func buildReaders(cfg *config.Config, r *raspi.Adaptor, logger *slog.Logger) ([]sensors.Reader, []gobot.Device) {
	var readers []sensors.Reader
	var devices []gobot.Device

	if cfg.Sensors.CPUTemp {
		readers = append(readers, sensors.NewCPUTemp(""))
	}

	ids := cfg.Sensors.DS18B20
	if len(ids) == 1 && ids[0] == "auto" {
		ids = sensors.DiscoverDS18B20()
		logger.Info("discovered one-wire probes", "count", len(ids))
	}
	for _, id := range ids {
		readers = append(readers, sensors.NewDS18B20(id))
	}

	if cfg.Sensors.Current.Enabled {
		opts := []func(i2c.Config){i2c.WithBus(cfg.Sensors.Current.Bus)}
		if cfg.Sensors.Current.Address != 0 {
			opts = append(opts, i2c.WithAddress(cfg.Sensors.Current.Address))
		}
		adc := i2c.NewADS1115Driver(r, opts...)
		devices = append(devices, adc)
		readers = append(readers, sensors.NewCurrentChannels(adc,
			cfg.Sensors.Current.Channels,
			cfg.Sensors.Current.Sensitivity,
			cfg.Sensors.Current.ZeroPoint)...)
	}

	return readers, devices
}

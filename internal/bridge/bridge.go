// Package bridge runs the sensor-to-MQTT loop: it announces the device
// via Home Assistant discovery, publishes sensor readings on a fixed
// interval, and accepts LED switch commands from the broker.
package bridge

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gobot.io/x/gobot/v2"
	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/platforms/mqtt"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/exploreborders/picobridge/internal/config"
	"github.com/exploreborders/picobridge/internal/sensors"
)

// Bridge owns the MQTT session and the publish loop.
type Bridge struct {
	cfg     *config.Config
	secrets config.Secrets
	readers []sensors.Reader
	topics  topics
	log     *slog.Logger
}

// New assembles a bridge from the loaded config and the sensor set.
func New(cfg *config.Config, secrets config.Secrets, readers []sensors.Reader, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		cfg:     cfg,
		secrets: secrets,
		readers: readers,
		topics:  topics{prefix: cfg.MQTT.TopicPrefix, deviceID: cfg.Device.ID},
		log:     logger,
	}
}

// brokerURL builds the adaptor connection string from the config.
func brokerURL(m config.MQTT) string {
	scheme := "tcp"
	if m.SSL {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, m.Broker, m.Port)
}

// clientID derives a unique client id so a supervised restart never
// collides with the broker's stale session.
func clientID(deviceID string) string {
	return deviceID + "-" + uuid.NewString()[:8]
}

// Run connects to the broker and blocks in the publish loop until the
// robot is stopped or the connection setup fails. The raspi adaptor is
// shared with the boot sequence; extras are devices (an ADC driver,
// say) that sensor readers depend on and the robot must start.
func (b *Bridge) Run(r *raspi.Adaptor, extras ...gobot.Device) error {
	if r == nil {
		r = raspi.NewAdaptor()
	}

	mqttAdaptor := mqtt.NewAdaptorWithAuth(
		brokerURL(b.cfg.MQTT),
		clientID(b.cfg.Device.ID),
		b.secrets.MQTTUser,
		b.secrets.MQTTPassword,
	)
	mqttAdaptor.SetAutoReconnect(true)
	if b.cfg.MQTT.SSL {
		mqttAdaptor.SetUseSSL(true)
	}

	devices := append([]gobot.Device{}, extras...)
	var led *gpio.LedDriver
	if b.cfg.Pins.StatusLED != "" {
		led = gpio.NewLedDriver(r, b.cfg.Pins.StatusLED)
		devices = append(devices, led)
	}

	work := func() {
		b.announce(mqttAdaptor, led != nil)
		b.publishAvailability(mqttAdaptor, "online")

		if led != nil {
			mqttAdaptor.On(b.topics.ledCommand(), func(msg mqtt.Message) {
				b.handleLEDCommand(mqttAdaptor, led, string(msg.Payload()))
			})
		}

		gobot.Every(b.cfg.MQTT.PublishEvery(), func() {
			b.publishReadings(mqttAdaptor)
		})
	}

	robot := gobot.NewRobot(b.cfg.Device.Name,
		[]gobot.Connection{r, mqttAdaptor},
		devices,
		work,
	)
	robot.AutoRun = false

	if err := robot.Start(); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	b.log.Info("bridge running",
		"broker", brokerURL(b.cfg.MQTT),
		"sensors", len(b.readers),
		"interval", b.cfg.MQTT.PublishEvery())

	// Block until asked to stop, then tell the controller we are
	// going away before tearing the session down.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	b.publishAvailability(mqttAdaptor, "offline")
	return robot.Stop()
}

// publisher is the subset of the MQTT adaptor the loop needs. Tests
// substitute a recorder.
type publisher interface {
	Publish(topic string, message []byte) bool
}

// announce publishes the Home Assistant discovery documents for every
// sensor and, when wired, the LED switch. Retained so the controller
// rediscovers us after its own restarts.
func (b *Bridge) announce(pub publisher, hasLED bool) {
	for _, rd := range b.readers {
		doc, err := sensorDiscovery(b.topics, b.cfg.Device.ID, b.cfg.Device.Name, rd)
		if err != nil {
			b.log.Error("discovery payload failed", "sensor", rd.Name(), "error", err)
			continue
		}
		pub.Publish(b.topics.sensorConfig(rd.Name()), doc)
	}
	if hasLED {
		doc, err := ledDiscovery(b.topics, b.cfg.Device.ID, b.cfg.Device.Name)
		if err != nil {
			b.log.Error("discovery payload failed", "sensor", "led", "error", err)
			return
		}
		pub.Publish(b.topics.ledConfig(), doc)
	}
}

func (b *Bridge) publishAvailability(pub publisher, state string) {
	pub.Publish(b.topics.availability(), []byte(state))
}

// publishReadings samples every reader and publishes each value on its
// state topic. A failed read is logged and skipped; the other sensors
// still publish this cycle.
func (b *Bridge) publishReadings(pub publisher) {
	for _, rd := range b.readers {
		value, err := rd.Read()
		if err != nil {
			b.log.Warn("sensor read failed", "sensor", rd.Name(), "error", err)
			continue
		}
		payload := strconv.FormatFloat(value, 'f', 2, 64)
		pub.Publish(b.topics.sensorState(rd.Name()), []byte(payload))
	}
}

// switcher is the LED surface the command handler drives.
type switcher interface {
	On() error
	Off() error
}

// handleLEDCommand applies an ON/OFF command from the broker and
// echoes the resulting state.
func (b *Bridge) handleLEDCommand(pub publisher, led switcher, payload string) {
	var err error
	state := strings.ToUpper(strings.TrimSpace(payload))
	switch state {
	case "ON":
		err = led.On()
	case "OFF":
		err = led.Off()
	default:
		b.log.Warn("ignoring unknown led command", "payload", payload)
		return
	}
	if err != nil {
		b.log.Error("led command failed", "state", state, "error", err)
		return
	}
	pub.Publish(b.topics.ledState(), []byte(state))
}

// WaitForBroker blocks until the broker answers a connection attempt,
// retrying on the configured delay. Used at boot so the bridge does not
// crash-loop while the network comes up.
func WaitForBroker(cfg *config.Config, secrets config.Secrets, attempts int, logger *slog.Logger) bool {
	for i := 0; i < attempts; i++ {
		probe := mqtt.NewAdaptorWithAuth(
			brokerURL(cfg.MQTT),
			clientID(cfg.Device.ID)+"-probe",
			secrets.MQTTUser,
			secrets.MQTTPassword,
		)
		if err := probe.Connect(); err == nil {
			probe.Disconnect()
			return true
		}
		logger.Warn("broker not reachable, retrying",
			"attempt", i+1,
			"delay", cfg.MQTT.ReconnectDelay())
		time.Sleep(cfg.MQTT.ReconnectDelay())
	}
	return false
}

package bridge

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exploreborders/picobridge/internal/config"
	"github.com/exploreborders/picobridge/internal/sensors"
)

type recordedMessage struct {
	topic   string
	payload string
}

type recordingPublisher struct {
	messages []recordedMessage
}

func (p *recordingPublisher) Publish(topic string, message []byte) bool {
	p.messages = append(p.messages, recordedMessage{topic: topic, payload: string(message)})
	return true
}

func (p *recordingPublisher) byTopic(topic string) (string, bool) {
	for _, m := range p.messages {
		if m.topic == topic {
			return m.payload, true
		}
	}
	return "", false
}

type stubReader struct {
	name  string
	unit  string
	value float64
	err   error
}

func (s stubReader) Name() string          { return s.name }
func (s stubReader) Unit() string          { return s.unit }
func (s stubReader) Read() (float64, error) { return s.value, s.err }

type fakeLED struct {
	on, off int
	err     error
}

func (f *fakeLED) On() error  { f.on++; return f.err }
func (f *fakeLED) Off() error { f.off++; return f.err }

func testConfig() *config.Config {
	return &config.Config{
		Device: config.Device{Name: "Garage Pico", ID: "garage-pico"},
		MQTT:   config.MQTT{Broker: "broker.local", Port: 1883, TopicPrefix: "homeassistant"},
		Pins:   config.Pins{StatusLED: "led"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTopicLayout(t *testing.T) {
	top := topics{prefix: "homeassistant", deviceID: "garage-pico"}

	assert.Equal(t, "homeassistant/sensor/garage-pico/availability", top.availability())
	assert.Equal(t, "homeassistant/sensor/garage-pico/cpu_temp", top.sensorState("cpu_temp"))
	assert.Equal(t, "homeassistant/sensor/garage-pico/cpu_temp/config", top.sensorConfig("cpu_temp"))
	assert.Equal(t, "homeassistant/switch/garage-pico/led/set", top.ledCommand())
	assert.Equal(t, "homeassistant/switch/garage-pico/led/state", top.ledState())
	assert.Equal(t, "homeassistant/switch/garage-pico/led/config", top.ledConfig())
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://broker.local:1883",
		brokerURL(config.MQTT{Broker: "broker.local", Port: 1883}))
	assert.Equal(t, "ssl://broker.local:8883",
		brokerURL(config.MQTT{Broker: "broker.local", Port: 8883, SSL: true}))
}

func TestClientIDUnique(t *testing.T) {
	a := clientID("garage-pico")
	b := clientID("garage-pico")

	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "garage-pico-")
}

func TestAnnouncePublishesDiscovery(t *testing.T) {
	b := New(testConfig(), config.Secrets{},
		[]sensors.Reader{stubReader{name: "cpu_temp", unit: "°C"}}, quietLogger())
	pub := &recordingPublisher{}

	b.announce(pub, true)

	payload, ok := pub.byTopic("homeassistant/sensor/garage-pico/cpu_temp/config")
	require.True(t, ok)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &doc))
	assert.Equal(t, "Garage Pico cpu_temp", doc["name"])
	assert.Equal(t, "garage-pico_cpu_temp", doc["unique_id"])
	assert.Equal(t, "homeassistant/sensor/garage-pico/cpu_temp", doc["state_topic"])
	assert.Equal(t, "homeassistant/sensor/garage-pico/availability", doc["availability_topic"])
	assert.Equal(t, "°C", doc["unit_of_measurement"])
	assert.Equal(t, "temperature", doc["device_class"])

	ledPayload, ok := pub.byTopic("homeassistant/switch/garage-pico/led/config")
	require.True(t, ok)

	var ledDoc map[string]any
	require.NoError(t, json.Unmarshal([]byte(ledPayload), &ledDoc))
	assert.Equal(t, "homeassistant/switch/garage-pico/led/set", ledDoc["command_topic"])
	assert.Equal(t, "homeassistant/switch/garage-pico/led/state", ledDoc["state_topic"])
}

func TestPublishReadingsSkipsFailures(t *testing.T) {
	b := New(testConfig(), config.Secrets{}, []sensors.Reader{
		stubReader{name: "cpu_temp", unit: "°C", value: 41.237},
		stubReader{name: "probe_0", unit: "°C", err: errors.New("read timeout")},
		stubReader{name: "current_1", unit: "A", value: 0.5},
	}, quietLogger())
	pub := &recordingPublisher{}

	b.publishReadings(pub)

	payload, ok := pub.byTopic("homeassistant/sensor/garage-pico/cpu_temp")
	require.True(t, ok)
	assert.Equal(t, "41.24", payload)

	_, ok = pub.byTopic("homeassistant/sensor/garage-pico/probe_0")
	assert.False(t, ok, "failed sensor must not publish")

	payload, ok = pub.byTopic("homeassistant/sensor/garage-pico/current_1")
	require.True(t, ok)
	assert.Equal(t, "0.50", payload)
}

func TestAvailability(t *testing.T) {
	b := New(testConfig(), config.Secrets{}, nil, quietLogger())
	pub := &recordingPublisher{}

	b.publishAvailability(pub, "online")

	payload, ok := pub.byTopic("homeassistant/sensor/garage-pico/availability")
	require.True(t, ok)
	assert.Equal(t, "online", payload)
}

func TestHandleLEDCommand(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantOn    int
		wantOff   int
		wantState string
	}{
		{name: "on", payload: "ON", wantOn: 1, wantState: "ON"},
		{name: "off", payload: "OFF", wantOff: 1, wantState: "OFF"},
		{name: "lowercase", payload: "on", wantOn: 1, wantState: "ON"},
		{name: "padded", payload: " OFF\n", wantOff: 1, wantState: "OFF"},
		{name: "garbage ignored", payload: "BLINK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(testConfig(), config.Secrets{}, nil, quietLogger())
			pub := &recordingPublisher{}
			led := &fakeLED{}

			b.handleLEDCommand(pub, led, tt.payload)

			assert.Equal(t, tt.wantOn, led.on)
			assert.Equal(t, tt.wantOff, led.off)

			state, ok := pub.byTopic("homeassistant/switch/garage-pico/led/state")
			if tt.wantState == "" {
				assert.False(t, ok, "no state echo for ignored command")
			} else {
				require.True(t, ok)
				assert.Equal(t, tt.wantState, state)
			}
		})
	}
}

func TestLEDCommandErrorDoesNotEchoState(t *testing.T) {
	b := New(testConfig(), config.Secrets{}, nil, quietLogger())
	pub := &recordingPublisher{}
	led := &fakeLED{err: errors.New("gpio busy")}

	b.handleLEDCommand(pub, led, "ON")

	_, ok := pub.byTopic("homeassistant/switch/garage-pico/led/state")
	assert.False(t, ok)
}

func TestDeviceClassFor(t *testing.T) {
	assert.Equal(t, "temperature", deviceClassFor("°C"))
	assert.Equal(t, "current", deviceClassFor("A"))
	assert.Equal(t, "", deviceClassFor("lux"))
}

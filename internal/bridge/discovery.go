package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/exploreborders/picobridge/internal/sensors"
)

// discoveryDoc is a Home Assistant MQTT discovery config document.
type discoveryDoc struct {
	Name              string       `json:"name"`
	UniqueID          string       `json:"unique_id"`
	StateTopic        string       `json:"state_topic,omitempty"`
	CommandTopic      string       `json:"command_topic,omitempty"`
	AvailabilityTopic string       `json:"availability_topic"`
	UnitOfMeasurement string       `json:"unit_of_measurement,omitempty"`
	DeviceClass       string       `json:"device_class,omitempty"`
	Device            discoveryDev `json:"device"`
}

type discoveryDev struct {
	Identifiers []string `json:"identifiers"`
	Name        string   `json:"name"`
	Model       string   `json:"model"`
}

// topics computes the MQTT topic layout for one device.
type topics struct {
	prefix   string
	deviceID string
}

func (t topics) availability() string {
	return fmt.Sprintf("%s/sensor/%s/availability", t.prefix, t.deviceID)
}

func (t topics) sensorState(sensor string) string {
	return fmt.Sprintf("%s/sensor/%s/%s", t.prefix, t.deviceID, sensor)
}

func (t topics) sensorConfig(sensor string) string {
	return t.sensorState(sensor) + "/config"
}

func (t topics) ledCommand() string {
	return fmt.Sprintf("%s/switch/%s/led/set", t.prefix, t.deviceID)
}

func (t topics) ledState() string {
	return fmt.Sprintf("%s/switch/%s/led/state", t.prefix, t.deviceID)
}

func (t topics) ledConfig() string {
	return fmt.Sprintf("%s/switch/%s/led/config", t.prefix, t.deviceID)
}

// deviceClassFor maps a unit to the Home Assistant device class.
func deviceClassFor(unit string) string {
	switch unit {
	case "°C":
		return "temperature"
	case "A":
		return "current"
	default:
		return ""
	}
}

// sensorDiscovery renders the discovery document for one sensor.
func sensorDiscovery(t topics, deviceID, deviceName string, r sensors.Reader) ([]byte, error) {
	doc := discoveryDoc{
		Name:              fmt.Sprintf("%s %s", deviceName, r.Name()),
		UniqueID:          fmt.Sprintf("%s_%s", deviceID, r.Name()),
		StateTopic:        t.sensorState(r.Name()),
		AvailabilityTopic: t.availability(),
		UnitOfMeasurement: r.Unit(),
		DeviceClass:       deviceClassFor(r.Unit()),
		Device: discoveryDev{
			Identifiers: []string{deviceID},
			Name:        deviceName,
			Model:       "picobridge",
		},
	}
	return json.Marshal(doc)
}

// ledDiscovery renders the discovery document for the LED switch.
func ledDiscovery(t topics, deviceID, deviceName string) ([]byte, error) {
	doc := discoveryDoc{
		Name:              deviceName + " LED",
		UniqueID:          deviceID + "_led",
		StateTopic:        t.ledState(),
		CommandTopic:      t.ledCommand(),
		AvailabilityTopic: t.availability(),
		Device: discoveryDev{
			Identifiers: []string{deviceID},
			Name:        deviceName,
			Model:       "picobridge",
		},
	}
	return json.Marshal(doc)
}

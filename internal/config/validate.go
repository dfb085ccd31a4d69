package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the config for required fields and valid values.
func Validate(c *Config) error {
	var errors []string

	if c.Update.FirmwareRoot == "" {
		errors = append(errors, ValidationError{
			Field:   "update.firmware_root",
			Message: "firmware_root is required",
		}.Error())
	}

	if err := validateGitHub(c.GitHub); err != nil {
		errors = append(errors, err.Error())
	}

	if err := validatePins(c.Pins); err != nil {
		errors = append(errors, err.Error())
	}

	if c.MQTT.Broker != "" {
		if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
			errors = append(errors, ValidationError{
				Field:   "mqtt.port",
				Message: fmt.Sprintf("invalid port %d", c.MQTT.Port),
			}.Error())
		}
	}

	for i, ext := range c.Update.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("update.extensions[%d]", i),
				Message: fmt.Sprintf("extension %q must start with a dot", ext),
			}.Error())
		}
	}

	if cur := c.Sensors.Current; cur.Enabled {
		if cur.Channels < 1 || cur.Channels > 4 {
			errors = append(errors, ValidationError{
				Field:   "sensors.current.channels",
				Message: "channels must be between 1 and 4",
			}.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// validateGitHub requires owner and repo to be set together: one
// without the other can never form a release URL.
func validateGitHub(g GitHub) error {
	if (g.Owner == "") != (g.Repo == "") {
		return ValidationError{
			Field:   "github",
			Message: "owner and repo must both be set or both be empty",
		}
	}
	return nil
}

func validatePins(p Pins) error {
	for field, pin := range map[string]string{
		"pins.update_button": p.UpdateButton,
		"pins.status_led":    p.StatusLED,
	} {
		if pin == "" {
			continue
		}
		if _, err := strconv.Atoi(pin); err != nil {
			return ValidationError{
				Field:   field,
				Message: fmt.Sprintf("invalid GPIO pin %q", pin),
			}
		}
	}
	return nil
}

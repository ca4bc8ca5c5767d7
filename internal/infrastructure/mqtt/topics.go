package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every OpenDeck topic when the config
// leaves mqtt.topic_prefix empty.
const DefaultTopicPrefix = "opendeck"

// Topics builds OpenDeck MQTT topics under a configurable prefix.
//
// Device drivers publish to the device topics and consume commands:
//
//	opendeck/device/{id}/register    driver → core, device record
//	opendeck/device/{id}/deregister  driver → core
//	opendeck/device/{id}/event       driver → core, key and encoder input
//	opendeck/device/{id}/command     core → driver, images and clears
//
// UI notifications go to opendeck/ui/{kind}.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// DeviceRegister returns the topic a driver announces a device on.
func (t Topics) DeviceRegister(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/register", t.prefix(), deviceID)
}

// DeviceDeregister returns the topic a driver withdraws a device on.
func (t Topics) DeviceDeregister(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/deregister", t.prefix(), deviceID)
}

// DeviceEvent returns the topic carrying physical input from a device.
func (t Topics) DeviceEvent(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/event", t.prefix(), deviceID)
}

// DeviceCommand returns the topic the core sends driver commands on.
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/command", t.prefix(), deviceID)
}

// AllDeviceRegisters matches every device registration.
func (t Topics) AllDeviceRegisters() string {
	return t.prefix() + "/device/+/register"
}

// AllDeviceDeregisters matches every device withdrawal.
func (t Topics) AllDeviceDeregisters() string {
	return t.prefix() + "/device/+/deregister"
}

// AllDeviceEvents matches input from every device.
func (t Topics) AllDeviceEvents() string {
	return t.prefix() + "/device/+/event"
}

// UI returns the topic for one kind of UI notification.
//
// Example: opendeck/ui/instance_changed
func (t Topics) UI(kind string) string {
	return fmt.Sprintf("%s/ui/%s", t.prefix(), kind)
}

// SystemStatus returns the retained online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// ParseDeviceTopic splits a device topic into the device id and the
// message kind (register, deregister, event or command).
func (t Topics) ParseDeviceTopic(topic string) (deviceID, kind string, err error) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/device/")
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return parts[0], parts[1], nil
}

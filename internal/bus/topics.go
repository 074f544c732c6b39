package bus

import "fmt"

// Topic prefix and command verbs shared by the controller and the device
// simulators. The scheme mirrors the MQTT layout:
//
//	stf/<device>/cmd/<verb>   device commands
//	stf/<device>/status       device status, every tick
//	stf/global/cmd/<verb>     broadcast reset and estop
const (
	TopicPrefix = "stf"

	VerbMove  = "move"
	VerbGrip  = "grip"
	VerbStop  = "stop"
	VerbReset = "reset"
	VerbEstop = "estop"
)

// DeviceCommandTopic returns the command topic for one device and verb.
func DeviceCommandTopic(deviceID, verb string) string {
	return fmt.Sprintf("%s/%s/cmd/%s", TopicPrefix, deviceID, verb)
}

// DeviceStatusTopic returns the status topic for one device.
func DeviceStatusTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, deviceID)
}

// AllStatusTopic returns the wildcard pattern matching every device's
// status topic.
func AllStatusTopic() string {
	return TopicPrefix + "/+/status"
}

// GlobalCommandTopic returns the broadcast topic for a verb.
func GlobalCommandTopic(verb string) string {
	return fmt.Sprintf("%s/global/cmd/%s", TopicPrefix, verb)
}

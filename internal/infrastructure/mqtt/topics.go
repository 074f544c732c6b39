package mqtt

// TopicPrefix is the root of all warehouse bus topics.
//
// Scheme:
//
//	stf/<device>/cmd/<action>   device-level instructions (move, grip, stop)
//	stf/<device>/status         device telemetry at the physics tick rate
//	stf/global/cmd/<action>     broadcast instructions (reset, estop)
//	stf/system/status           controller online/offline (retained, LWT)
//
// Device and broadcast topic builders live with the transport-agnostic bus
// package; this client only names the liveness topic it owns.
const TopicPrefix = "stf"

// Topics provides builders for the topics the MQTT client itself manages.
type Topics struct{}

// SystemStatus returns the retained controller liveness topic. The client
// publishes online/offline here and registers it as the LWT.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

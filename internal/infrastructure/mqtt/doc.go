// Package mqtt provides the MQTT transport for the warehouse hardware bus.
//
// It wraps eclipse/paho.mqtt.golang with connection management, automatic
// reconnection, subscription restoration, panic-safe message handlers and
// a Last Will on the system status topic so dashboards learn when the
// controller drops off the bus.
//
// The topic scheme mirrors the physical cell:
//
//	stf/<device>/cmd/move    {"target_x": 100, "target_y": 100}
//	stf/<device>/cmd/grip    {"action": "grip"}
//	stf/<device>/cmd/stop    {}
//	stf/<device>/status      {"device_id", "x", "y", "vx", "vy", "status", "timestamp"}
//	stf/global/cmd/reset     {"device": "hbw"} (empty = all devices)
//	stf/global/cmd/estop     {}
//	stf/system/status        {"status": "online"} (retained)
//
// Controller and simulators never import this package directly; they speak
// through the transport-agnostic bus.Bus interface, for which this client
// is one backend (see internal/bus).
package mqtt

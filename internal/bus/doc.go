// Package bus defines the warehouse hardware bus: an asynchronous
// publish/subscribe channel carrying instructions to devices and status
// telemetry back.
//
// Delivery semantics are at-least-once with per-topic ordering. Two
// transports are provided: MemoryBus runs everything in-process (the
// default for development and tests), and MQTTBus routes traffic through a
// broker via the infrastructure MQTT client. Both are hidden behind the Bus
// interface, so the controller and the device simulators are
// transport-agnostic.
package bus

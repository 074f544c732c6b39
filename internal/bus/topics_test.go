package bus

import "testing"

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device move command", DeviceCommandTopic("vgr", VerbMove), "stf/vgr/cmd/move"},
		{"device grip command", DeviceCommandTopic("hbw", VerbGrip), "stf/hbw/cmd/grip"},
		{"device stop command", DeviceCommandTopic("conveyor", VerbStop), "stf/conveyor/cmd/stop"},
		{"device status", DeviceStatusTopic("conveyor"), "stf/conveyor/status"},
		{"all device status", AllStatusTopic(), "stf/+/status"},
		{"global estop", GlobalCommandTopic(VerbEstop), "stf/global/cmd/estop"},
		{"global reset", GlobalCommandTopic(VerbReset), "stf/global/cmd/reset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	// Command topics match the status wildcard only for status.
	if TopicMatches(AllStatusTopic(), DeviceCommandTopic("vgr", VerbMove)) {
		t.Error("status wildcard matched a command topic")
	}
	if !TopicMatches(AllStatusTopic(), DeviceStatusTopic("vgr")) {
		t.Error("status wildcard did not match a status topic")
	}
}

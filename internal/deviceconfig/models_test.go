package deviceconfig

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestParseNodeStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr bool
	}{
		{
			name:    "devices and sensors",
			input:   mockStatusResponse,
			wantIDs: []string{"device1", "sensor1"},
		},
		{
			name:    "numeric ordering",
			input:   `{"sensor2":{},"device10":{},"device2":{},"sensor1":{}}`,
			wantIDs: []string{"device2", "device10", "sensor1", "sensor2"},
		},
		{
			name:    "non-instance keys skipped",
			input:   `{"metadata":{"id":"x"},"uptime":42}`,
			wantIDs: []string{},
		},
		{
			name:    "not an object",
			input:   `[1,2,3]`,
			wantErr: true,
		},
		{
			name:    "bad instance body",
			input:   `{"device1":"on"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := ParseNodeStatus([]byte(tt.input))
			if tt.wantErr {
				if !IsParseError(err) {
					t.Errorf("ParseNodeStatus() error = %v, want parse error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNodeStatus() error = %v", err)
			}
			if got := status.IDs(); !reflect.DeepEqual(got, tt.wantIDs) {
				t.Errorf("IDs() = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestNodeStatusRoundTrip(t *testing.T) {
	status, err := ParseNodeStatus([]byte(mockStatusResponse))
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(status)
	if err != nil {
		t.Fatal(err)
	}
	again, err := ParseNodeStatus(data)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(status.Instances, again.Instances) {
		t.Errorf("round trip changed instances:\n%v\n%v", status.Instances, again.Instances)
	}
	if !strings.Contains(string(data), `"current_rule":55`) {
		t.Errorf("numeric rule not emitted as a number: %s", data)
	}
}

func TestNodeStatusString(t *testing.T) {
	status, err := ParseNodeStatus([]byte(mockStatusResponse))
	if err != nil {
		t.Fatal(err)
	}
	status.Address = "192.168.1.40"

	out := status.String()
	for _, want := range []string{"Node 192.168.1.40", "Desk lamp", "turned=On", "reading=21.4°C", "rule=disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q\nGot:\n%s", want, out)
		}
	}
}

package access

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/emulation"
)

func TestParseRemoteMessage(t *testing.T) {
	tests := []struct {
		name string
		data string
		want RemoteMessage
	}{
		{
			name: "Emulation control, object payload",
			data: `{"type":"emulation_control","payload":{"username":"alice","cardData":"0102","activate":true}}`,
			want: RemoteMessage{Type: TypeEmulationControl, Username: "alice", CardData: "0102", Activate: true},
		},
		{
			name: "Emulation control, string payload",
			data: `{"type":"emulation_control","payload":"{\"type\":\"emulation_control\",\"username\":\"bob\",\"cardData\":\"AA\",\"activate\":false,\"timestamp\":1700000000000}"}`,
			want: RemoteMessage{Type: TypeEmulationControl, Username: "bob", CardData: "AA"},
		},
		{
			name: "Programming data, top level",
			data: `{"type":"programming_data","username":"carol","cardData":"BEEF","action":"program"}`,
			want: RemoteMessage{Type: TypeProgrammingData, Username: "carol", CardData: "BEEF", Action: "program"},
		},
		{
			name: "Payload overrides top level",
			data: `{"type":"programming_data","username":"outer","payload":{"username":"inner","cardData":"01"}}`,
			want: RemoteMessage{Type: TypeProgrammingData, Username: "inner", CardData: "01"},
		},
		{
			name: "Null payload",
			data: `{"type":"programming_data","payload":null,"cardData":"01"}`,
			want: RemoteMessage{Type: TypeProgrammingData, CardData: "01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRemoteMessage([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseRemoteMessage: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRemoteMessage_Malformed(t *testing.T) {
	for _, data := range []string{
		`not json`,
		`{"type":"emulation_control","payload":"not json"}`,
		`{"type":"emulation_control","payload":[1,2]}`,
		`{"type":"emulation_control","payload":{"activate":"yes"}}`,
	} {
		if _, err := ParseRemoteMessage([]byte(data)); err == nil {
			t.Errorf("ParseRemoteMessage(%s) expected error", data)
		}
	}
}

func TestApplyRemoteControl_EmulationControl(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msg, _ := ParseRemoteMessage([]byte(`{"type":"emulation_control","payload":{"username":"alice","cardData":"001122","activate":true}}`))
	res, err := f.svc.ApplyRemoteControl(ctx, msg)
	if err != nil {
		t.Fatalf("ApplyRemoteControl: %v", err)
	}

	want := RemoteResult{
		Type:      TypeEmulationControl,
		Emulation: emulation.Status{Active: true, PayloadPresent: true, PayloadSize: 3},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	// Emulation control never touches the credential set.
	if n, _ := f.creds.CountActive(ctx); n != 0 {
		t.Errorf("CountActive = %d, want 0", n)
	}
}

func TestApplyRemoteControl_ProgrammingData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.ApplyRemoteControl(ctx, RemoteMessage{Type: TypeProgrammingData, Username: "alice", CardData: "0102"})
	if err != nil {
		t.Fatalf("ApplyRemoteControl: %v", err)
	}
	if res.Credential == nil || res.Credential.Subject != "alice" || res.Credential.PayloadHex() != "0102" {
		t.Fatalf("credential = %+v", res.Credential)
	}

	active, _ := f.svc.ListActiveCredentials(ctx)
	if len(active) != 1 || active[0].ID != res.Credential.ID {
		t.Errorf("ListActiveCredentials = %+v", active)
	}
	if f.svc.EmulationStatus().PayloadPresent {
		t.Error("programming_data must not load emulation")
	}
}

func TestApplyRemoteControl_Errors(t *testing.T) {
	tests := []struct {
		name string
		msg  RemoteMessage
		want error
	}{
		{"Unknown type", RemoteMessage{Type: "reboot"}, ErrUnknownMessageType},
		{"Empty type", RemoteMessage{}, ErrUnknownMessageType},
		{"Emulation without data", RemoteMessage{Type: TypeEmulationControl, Activate: true}, ErrMissingField},
		{"Emulation bad hex", RemoteMessage{Type: TypeEmulationControl, CardData: "XY"}, carddata.ErrMalformedEncoding},
		{"Programming other action", RemoteMessage{Type: TypeProgrammingData, Username: "a", CardData: "01", Action: "erase"}, ErrUnsupportedAction},
		{"Programming without username", RemoteMessage{Type: TypeProgrammingData, CardData: "01"}, ErrMissingField},
		{"Programming without data", RemoteMessage{Type: TypeProgrammingData, Username: "a"}, ErrMissingField},
		{"Programming bad hex", RemoteMessage{Type: TypeProgrammingData, Username: "a", CardData: "0"}, carddata.ErrMalformedEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.svc.ApplyRemoteControl(context.Background(), tt.msg); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

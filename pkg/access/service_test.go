package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/distribution"
	"github.com/gregLibert/rfaccess/pkg/emulation"
	"github.com/gregLibert/rfaccess/pkg/kv"
	"github.com/gregLibert/rfaccess/pkg/provisioning"
)

type fixture struct {
	svc      *Service
	state    *emulation.State
	settings *emulation.SettingsStore
	creds    *distribution.Store
	metrics  *emulation.Metrics
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.UnixMilli(1_700_000_000_000)}
	backend := kv.NewMemory()
	f.creds = distribution.New(backend, distribution.WithClock(func() time.Time { return f.now }))
	f.settings = emulation.NewSettingsStore(backend, nil)
	f.state = emulation.NewState()
	f.metrics = emulation.NewMetrics(nil)
	f.svc = New(f.creds, f.settings, f.state, WithMetrics(f.metrics))
	return f
}

func TestService_LoadEmulationThenRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if err := f.svc.LoadEmulation(ctx, "001122", true); err != nil {
		t.Fatalf("LoadEmulation: %v", err)
	}

	d := emulation.NewDispatcher(f.state, nil)
	got := d.ProcessFrame([]byte{0x00, 0xB0, 0x00, 0x00, 0x03})
	if diff := cmp.Diff([]byte{0x00, 0x11, 0x22, 0x90, 0x00}, got); diff != "" {
		t.Errorf("READ response mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(emulation.Status{Active: true, PayloadPresent: true, PayloadSize: 3}, f.svc.EmulationStatus()); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if got := testutil.ToFloat64(f.metrics.Active); got != 1 {
		t.Errorf("active gauge = %v, want 1", got)
	}

	// Persisted for the next start.
	settings, ok, err := f.settings.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("settings.Load = %v, %v", ok, err)
	}
	if diff := cmp.Diff(emulation.Settings{Payload: carddata.MustDecode("001122"), Active: true}, settings); diff != "" {
		t.Errorf("persisted settings mismatch (-want +got):\n%s", diff)
	}
}

func TestService_LoadEmulationRejectsBadHex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.svc.LoadEmulation(ctx, "AA", true)

	if err := f.svc.LoadEmulation(ctx, "ABC", false); !errors.Is(err, carddata.ErrMalformedEncoding) {
		t.Fatalf("LoadEmulation(ABC) error = %v, want ErrMalformedEncoding", err)
	}
	if st := f.svc.EmulationStatus(); !st.Active || st.PayloadSize != 1 {
		t.Errorf("rejected load changed state: %+v", st)
	}
}

func TestService_Credentials(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, err := f.svc.CreateCredential(ctx, "alice", "0102")
	if err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	if _, err := f.svc.CreateCredential(ctx, "bob", "zz"); !errors.Is(err, carddata.ErrMalformedEncoding) {
		t.Errorf("CreateCredential(zz) error = %v", err)
	}

	// Creating a credential leaves emulation alone.
	if st := f.svc.EmulationStatus(); st.PayloadPresent || st.Active {
		t.Errorf("CreateCredential changed emulation: %+v", st)
	}

	next, ok, err := f.svc.ReissueCredential(ctx, r.ID)
	if err != nil || !ok {
		t.Fatalf("ReissueCredential = %v, %v", ok, err)
	}
	if _, ok, _ := f.svc.ReissueCredential(ctx, "nonexistent"); ok {
		t.Error("ReissueCredential(nonexistent) reported success")
	}

	active, _ := f.svc.ListActiveCredentials(ctx)
	if len(active) != 1 || active[0].ID != next.ID {
		t.Errorf("ListActiveCredentials = %+v", active)
	}
	all, _ := f.svc.ListAllCredentials(ctx)
	if len(all) != 2 {
		t.Errorf("ListAllCredentials length = %d, want 2", len(all))
	}

	if ok, _ := f.svc.DeleteCredential(ctx, r.ID); !ok {
		t.Error("DeleteCredential(old) = false")
	}

	f.now = f.now.Add(time.Minute)
	if n, _ := f.svc.DeleteOlderThan(ctx, time.Second); n != 1 {
		t.Errorf("DeleteOlderThan = %d, want 1", n)
	}
}

func TestService_ProgramFromLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	link := provisioning.NewLinker("").Render("id-1", "alice", []byte{0xCA, 0xFE})

	got, err := f.svc.ProgramFromLink(ctx, link, true)
	if err != nil {
		t.Fatalf("ProgramFromLink: %v", err)
	}
	if got.Subject != "alice" || got.ID != "id-1" {
		t.Errorf("link = %+v", got)
	}
	payload, active := f.state.Snapshot()
	if !active || string(payload) != "\xCA\xFE" {
		t.Errorf("state = %X, %v", payload, active)
	}

	// Programming from a link does not issue a credential.
	if n, _ := f.creds.CountActive(ctx); n != 0 {
		t.Errorf("CountActive = %d, want 0", n)
	}
}

func TestService_ProgramFromLinkErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		uri  string
		want error
	}{
		{"Foreign scheme", "https://open?cardData=01", provisioning.ErrWrongScheme},
		{"Other action", "rfaccess://open?cardData=01&action=erase", ErrUnsupportedAction},
		{"No payload", "rfaccess://open?username=alice", ErrMissingField},
		{"Empty payload", "rfaccess://open?cardData=", ErrMissingField},
		{"Bad payload", "rfaccess://open?cardData=0", carddata.ErrMalformedEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.svc.ProgramFromLink(ctx, tt.uri, true); !errors.Is(err, tt.want) {
				t.Errorf("ProgramFromLink(%q) error = %v, want %v", tt.uri, err, tt.want)
			}
			if f.svc.EmulationStatus().PayloadPresent {
				t.Error("failed ProgramFromLink loaded a payload")
			}
		})
	}
}

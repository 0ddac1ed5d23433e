package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gregLibert/rfaccess/pkg/carddata"
	"github.com/gregLibert/rfaccess/pkg/emulation"
	"github.com/gregLibert/rfaccess/pkg/iso7816"
)

func emulatedClient(payload []byte, active bool) *iso7816.Client {
	state := emulation.NewState()
	state.Load(payload, active)
	d := emulation.NewDispatcher(state, nil)
	return iso7816.NewClient(iso7816.TransmitterFunc(d.ProcessFrame))
}

func TestProbeCard_DefaultImage(t *testing.T) {
	var out bytes.Buffer
	opts := probeOptions{aid: carddata.MustDecode(defaultProbeAID), blocks: 2, tryWrite: true}
	if err := probeCard(&out, emulatedClient(emulation.DefaultCardImage(), true), opts); err != nil {
		t.Fatalf("probeCard: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"[Block   0] 12345678",
		"|RF ACCESS CARD",
		"[6F00]",
		">> Card is read-only",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output misses %q:\n%s", want, got)
		}
	}
}

func TestProbeCard_InactiveCard(t *testing.T) {
	var out bytes.Buffer
	opts := probeOptions{aid: carddata.MustDecode(defaultProbeAID), blocks: 1}
	if err := probeCard(&out, emulatedClient(nil, false), opts); err == nil {
		t.Fatal("expected SELECT to fail on an inactive card")
	}
}

func TestProbeCard_StopsOnRefusedRead(t *testing.T) {
	var out bytes.Buffer
	opts := probeOptions{aid: carddata.MustDecode(defaultProbeAID), blocks: 3}
	if err := probeCard(&out, emulatedClient(nil, true), opts); err != nil {
		t.Fatalf("probeCard: %v", err)
	}
	if got := strings.Count(out.String(), "refused"); got != 1 {
		t.Errorf("refused %d times, want 1:\n%s", got, out.String())
	}
}

func TestSafeASCII(t *testing.T) {
	if got := safeASCII([]byte{'R', 'F', 0x00, 0x7F}); got != "RF.." {
		t.Errorf("safeASCII = %q", got)
	}
}

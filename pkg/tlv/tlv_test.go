package tlv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/rfaccess/pkg/carddata"
)

// fci is an FCI template: DF name plus a proprietary template holding a label.
var fci = carddata.MustDecode(
	"6F 11",
	"84 04 F0524641", // DF name
	"A5 09",
	"50 07 52464143434553", // "RFACCES"
)

func TestDump(t *testing.T) {
	got, err := Dump(fci)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	want := "6F:\n" +
		"  84: F0524641\n" +
		"  A5:\n" +
		`    50: 52464143434553 ("RFACCES")` + "\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dump mismatch (-want +got):\n%s", diff)
	}
}

func TestDump_Malformed(t *testing.T) {
	if _, err := Dump(carddata.MustDecode("84 05 0102")); err == nil {
		t.Error("expected error for truncated value")
	}
}

func TestFind(t *testing.T) {
	tests := []struct {
		name string
		tag  string
		want []byte
	}{
		{"Nested primitive", "50", []byte("RFACCES")},
		{"Lowercase tag", "6f", fci[2:]},
		{"Direct child", "84", carddata.MustDecode("F0524641")},
		{"Constructed child", "a5", carddata.MustDecode("50 07 52464143434553")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Find(fci, tt.tag)
			if err != nil {
				t.Fatalf("Find(%s): %v", tt.tag, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Find(%s) = %X, want %X", tt.tag, got, tt.want)
			}
		})
	}

	if _, err := Find(fci, "9F38"); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("missing tag: got %v, want ErrTagNotFound", err)
	}
}

func TestPrintable(t *testing.T) {
	tests := []struct {
		in   []byte
		want bool
	}{
		{nil, false},
		{[]byte("VISA"), true},
		{[]byte{'V', 0x00}, false},
		{[]byte{0x7F}, false},
	}
	for _, tt := range tests {
		if got := printable(tt.in); got != tt.want {
			t.Errorf("printable(%X) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

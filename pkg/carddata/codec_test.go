package carddata

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		in   []byte
		want string
	}{
		{nil, ""},
		{[]byte{0x00}, "00"},
		{[]byte{0x01, 0x02}, "0102"},
		{[]byte{0xca, 0xfe, 0xba, 0xbe}, "CAFEBABE"},
	}

	for _, tt := range tests {
		if got := Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{name: "Empty", in: "", want: []byte{}},
		{name: "Upper", in: "001122", want: []byte{0x00, 0x11, 0x22}},
		{name: "Lower", in: "cafe", want: []byte{0xCA, 0xFE}},
		{name: "Mixed", in: "cAfE", want: []byte{0xCA, 0xFE}},
		{name: "Odd length", in: "123", wantErr: true},
		{name: "Non hex", in: "ZZ", wantErr: true},
		{name: "Separator", in: "00 11", wantErr: true},
		{name: "Prefix", in: "0x01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedEncoding) {
					t.Fatalf("Decode(%q) error = %v, want ErrMalformedEncoding", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode(%q): %v", tt.in, err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Decode(%q) = %X, want %X", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	for _, b := range [][]byte{{}, {0x00}, {0xFF, 0x00, 0x7F}, all} {
		got, err := Decode(Encode(b))
		if err != nil {
			t.Fatalf("Decode(Encode(%X)): %v", b, err)
		}
		if !bytes.Equal(got, b) {
			t.Errorf("round trip = %X, want %X", got, b)
		}
	}
}

func TestEncodeNormalizesCase(t *testing.T) {
	b, err := Decode("deadBEEF")
	if err != nil {
		t.Fatal(err)
	}
	if got := Encode(b); got != "DEADBEEF" {
		t.Errorf("Encode(Decode(deadBEEF)) = %q", got)
	}
}

func TestMustDecode(t *testing.T) {
	tests := []struct {
		name      string
		inputs    []string
		want      []byte
		wantPanic bool
	}{
		{
			name:   "Simple Join",
			inputs: []string{"00", "A4"},
			want:   []byte{0x00, 0xA4},
		},
		{
			name:   "With Spaces",
			inputs: []string{"00 A4", " 04 00 "},
			want:   []byte{0x00, 0xA4, 0x04, 0x00},
		},
		{
			name:      "Invalid Hex",
			inputs:    []string{"ZZ"},
			wantPanic: true,
		},
		{
			name:      "Odd Length",
			inputs:    []string{"123"},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tt.wantPanic {
					t.Errorf("MustDecode() panic = %v, wantPanic %v", r, tt.wantPanic)
				}
			}()

			got := MustDecode(tt.inputs...)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("MustDecode() = %X, want %X", got, tt.want)
			}
		})
	}
}

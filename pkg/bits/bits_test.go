package bits

import "testing"

func TestBit(t *testing.T) {
	tests := []struct {
		n    uint
		want byte
	}{
		{1, 0x01}, {4, 0x08}, {8, 0x80},
		{0, 0x00}, {9, 0x00},
	}

	for _, tt := range tests {
		if got := Bit(tt.n); got != tt.want {
			t.Errorf("Bit(%d) = 0x%02X; want 0x%02X", tt.n, got, tt.want)
		}
	}
}

func TestIsSetAndSet(t *testing.T) {
	cla := byte(0b0001_0000)
	if !IsSet(cla, 5) {
		t.Error("chaining bit b5 should be set")
	}
	if IsSet(cla, 8) {
		t.Error("proprietary bit b8 should not be set")
	}
	if got := Set(0x00, 7); got != 0x40 {
		t.Errorf("Set(0x00, 7) = 0x%02X; want 0x40", got)
	}
}

func TestField(t *testing.T) {
	tests := []struct {
		name      string
		in        byte
		high, low uint
		want      byte
	}{
		{"SM bits of first interindustry CLA", 0b0000_1100, 4, 3, 3},
		{"channel bits", 0b0000_0010, 2, 1, 2},
		{"further interindustry channel", 0b0100_1111, 4, 1, 15},
		{"whole byte", 0xB0, 8, 1, 0xB0},
		{"inverted range", 0xFF, 1, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Field(tt.in, tt.high, tt.low); got != tt.want {
				t.Errorf("Field(0x%02X, %d, %d) = %d; want %d", tt.in, tt.high, tt.low, got, tt.want)
			}
		})
	}
}

func TestUint16(t *testing.T) {
	if got := Uint16(0x01, 0x20); got != 0x0120 {
		t.Errorf("Uint16(01, 20) = 0x%04X; want 0x0120", got)
	}
	hi, lo := Split16(0x6A82)
	if hi != 0x6A || lo != 0x82 {
		t.Errorf("Split16(0x6A82) = %02X %02X; want 6A 82", hi, lo)
	}
}

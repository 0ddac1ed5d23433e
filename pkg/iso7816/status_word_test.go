package iso7816

import (
	"bytes"
	"strings"
	"testing"
)

func TestStatusWord_Classification(t *testing.T) {
	tests := []struct {
		sw        StatusWord
		isSuccess bool
		isWarning bool
		isError   bool
	}{
		{SW_NO_ERROR, true, false, false},
		{NewStatusWord(0x61, 0x10), true, false, false},
		{SW_WARN_EOF_REACHED, false, true, false},
		{NewStatusWord(0x63, 0xC2), false, true, false},
		{SW_ERR_WRONG_LENGTH, false, false, true},
		{SW_ERR_FILE_NOT_FOUND, false, false, true},
		{SW_ERR_UNKNOWN, false, false, true},
	}

	for _, tt := range tests {
		if got := tt.sw.IsSuccess(); got != tt.isSuccess {
			t.Errorf("SW %04X IsSuccess = %v, want %v", uint16(tt.sw), got, tt.isSuccess)
		}
		if got := tt.sw.IsWarning(); got != tt.isWarning {
			t.Errorf("SW %04X IsWarning = %v, want %v", uint16(tt.sw), got, tt.isWarning)
		}
		if got := tt.sw.IsError(); got != tt.isError {
			t.Errorf("SW %04X IsError = %v, want %v", uint16(tt.sw), got, tt.isError)
		}
	}
}

func TestStatusWord_Bytes(t *testing.T) {
	tests := []struct {
		sw   StatusWord
		want []byte
	}{
		{SW_NO_ERROR, []byte{0x90, 0x00}},
		{SW_ERR_UNKNOWN, []byte{0x6F, 0x00}},
		{SW_ERR_FILE_NOT_FOUND, []byte{0x6A, 0x82}},
	}

	for _, tt := range tests {
		if got := tt.sw.Bytes(); !bytes.Equal(got, tt.want) {
			t.Errorf("%s.Bytes() = %X, want %X", tt.sw, got, tt.want)
		}
	}

	// Each call must hand out its own buffer.
	a := SW_NO_ERROR.Bytes()
	a[0] = 0x00
	if b := SW_NO_ERROR.Bytes(); b[0] != 0x90 {
		t.Errorf("Bytes() buffers are shared: got %X", b)
	}
}

func TestStatusWord_PutTrailer(t *testing.T) {
	resp := []byte{0x01, 0x02, 0x00, 0x00}
	SW_NO_ERROR.PutTrailer(resp)

	want := []byte{0x01, 0x02, 0x90, 0x00}
	if !bytes.Equal(resp, want) {
		t.Errorf("PutTrailer = %X, want %X", resp, want)
	}
}

func TestStatusWord_Verbose(t *testing.T) {
	tests := []struct {
		sw       StatusWord
		contains string
	}{
		{NewStatusWord(0x61, 0x20), "32 bytes available"},
		{NewStatusWord(0x6C, 0x05), "correct Le is 5"},
		{SW_ERR_FILE_NOT_FOUND, "SW_ERR_FILE_NOT_FOUND"},
		{NewStatusWord(0x69, 0x99), "Command not allowed"},
		{NewStatusWord(0x12, 0x34), "Unknown Status"},
	}

	for _, tt := range tests {
		got := tt.sw.Verbose()
		if !strings.Contains(got, tt.contains) {
			t.Errorf("Verbose(%04X) = %q; want containing %q", uint16(tt.sw), got, tt.contains)
		}
	}
}

func TestStatusWord_String(t *testing.T) {
	if got := SW_NO_ERROR.String(); got != "SW_NO_ERROR" {
		t.Errorf("String() = %q", got)
	}
	if got := NewStatusWord(0x12, 0x34).String(); got != "StatusWord(1234)" {
		t.Errorf("String() = %q", got)
	}
}

func TestStatusWord_Hex(t *testing.T) {
	if got := SW_ERR_FILE_NOT_FOUND.Hex(); got != "6A82" {
		t.Errorf("Hex() = %q, want 6A82", got)
	}
	if got := NewStatusWord(0x00, 0x0F).Hex(); got != "000F" {
		t.Errorf("Hex() = %q, want 000F", got)
	}
}

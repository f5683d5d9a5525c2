package consensus

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultPoWSigned(t *testing.T) {
	p := Default()
	tests := []struct {
		name string
		hash string
		want bool
	}{
		{name: "four ones", hash: "1111" + strings.Repeat("a", 60), want: true},
		{name: "five ones", hash: "11111" + strings.Repeat("a", 59), want: true},
		{name: "three ones", hash: "111a" + strings.Repeat("a", 60), want: false},
		{name: "ones elsewhere", hash: "a1111" + strings.Repeat("a", 59), want: false},
		{name: "empty", hash: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Signed(tt.hash); got != tt.want {
				t.Fatalf("Signed(%q) = %v, want %v", tt.hash, got, tt.want)
			}
		})
	}
}

func TestNewPoWCustomPrefix(t *testing.T) {
	p, err := NewPoW('0', 2)
	if err != nil {
		t.Fatalf("NewPoW: %v", err)
	}
	if p.Prefix() != "00" {
		t.Fatalf("prefix = %q, want 00", p.Prefix())
	}
	if !p.Signed("00ff") || p.Signed("0fff") {
		t.Fatalf("custom prefix not applied")
	}
	if p.Describe() != "pow(prefix=00)" {
		t.Fatalf("unexpected description %q", p.Describe())
	}
}

func TestNewPoWRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		digit  byte
		length int
	}{
		{"non hex digit", 'z', 4},
		{"uppercase digit", 'A', 4},
		{"zero length", '1', 0},
		{"too long", '1', 65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPoW(tt.digit, tt.length)
			if !errors.Is(err, ErrInvalidConsensus) {
				t.Fatalf("expected ErrInvalidConsensus, got %v", err)
			}
		})
	}
}

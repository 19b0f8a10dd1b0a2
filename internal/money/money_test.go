package money

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  float64
	}{
		{"nil", nil, 0},
		{"float", 1250.5, 1250.5},
		{"int", 300, 300},
		{"plain string", "10000", 10000},
		{"thousands separators", "10,000", 10000},
		{"many separators", "1,234,567.89", 1234567.89},
		{"whitespace", "  5,000 ", 5000},
		{"empty string", "", 0},
		{"garbage", "abc", 0},
		{"partial garbage", "12abc", 0},
		{"json number", json.Number("2,000"), 2000},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Parse(tc.input); got != tc.want {
				t.Fatalf("Parse(%v) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestKobo(t *testing.T) {
	if got := Kobo(15000); got != 1500000 {
		t.Fatalf("Kobo(15000) = %d, want 1500000", got)
	}
	if got := Kobo(99.995); got != 10000 {
		t.Fatalf("Kobo(99.995) = %d, want 10000 (round up)", got)
	}
	if got := Kobo(-10); got != 0 {
		t.Fatalf("Kobo(-10) = %d, want 0", got)
	}
}

func TestFormat(t *testing.T) {
	if got := Format(10000); got != "10,000" {
		t.Fatalf("Format(10000) = %q, want %q", got, "10,000")
	}
	if got := Format(1250.5); got != "1,250.50" {
		t.Fatalf("Format(1250.5) = %q, want %q", got, "1,250.50")
	}
}

package utils

import (
	"testing"
	"time"
)

func TestParseTTL(t *testing.T) {
	const fallback = 7 * 24 * time.Hour
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"7d", 7 * 24 * time.Hour},
		{"12h", 12 * time.Hour},
		{"15m", 15 * time.Minute},
		{" 3 h ", 3 * time.Hour},
		{"10s", fallback},
		{"", fallback},
		{"0d", fallback},
		{"-1h", fallback},
		{"d", fallback},
	}
	for _, tc := range cases {
		if got := ParseTTL(tc.in, fallback); got != tc.want {
			t.Errorf("ParseTTL(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestHashRefreshRawIsStable(t *testing.T) {
	a, b := HashRefreshRaw("token"), HashRefreshRaw("token")
	if a != b || len(a) != 64 {
		t.Fatalf("hash = %q / %q", a, b)
	}
	if HashRefreshRaw("other") == a {
		t.Fatal("distinct tokens share a hash")
	}
}

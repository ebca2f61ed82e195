package archive

import (
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{200 * time.Millisecond, "<1s"},
		{42 * time.Second, "42s"},
		{65 * time.Second, "1m 5s"},
		{time.Hour, "1h"},
		{time.Hour + 5*time.Minute, "1h 5m"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tc := range cases {
		if got := FormatElapsed(tc.in); got != tc.want {
			t.Fatalf("FormatElapsed(%s)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatBytesIEC(t *testing.T) {
	if got := FormatBytesIEC(0); got != "0 B" {
		t.Fatalf("got %q", got)
	}
	if got := FormatBytesIEC(512); got != "512 B" {
		t.Fatalf("got %q", got)
	}
	if got := FormatBytesIEC(1536); got != "1.5 KiB" {
		t.Fatalf("got %q", got)
	}
	if got := FormatBytesIEC(3 * 1024 * 1024); got != "3.0 MiB" {
		t.Fatalf("got %q", got)
	}
}

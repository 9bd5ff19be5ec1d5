package artifacts

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{in: "reports/p-1/1.json", want: "reports/p-1/1.json"},
		{in: "/reports//p-1/./1.json", want: "reports/p-1/1.json"},
		{in: `reports\p-1\1.json`, want: "reports/p-1/1.json"},
		{in: "", err: true},
		{in: "   ", err: true},
		{in: "../etc/passwd", err: true},
		{in: "reports/../../x", err: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.in)
		if tt.err {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q): expected ErrInvalidKey, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CleanKey(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

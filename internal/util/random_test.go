package util

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateRandomID(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		hexLength  int
		wantPrefix string
		wantLength int // expected total length: prefix + hexLength
	}{
		{
			name:       "request ID format",
			prefix:     "req_",
			hexLength:  16,
			wantPrefix: "req_",
			wantLength: 20, // 4 + 16
		},
		{
			name:       "long ID format",
			prefix:     "s_",
			hexLength:  32,
			wantPrefix: "s_",
			wantLength: 34, // 2 + 32
		},
		{
			name:       "custom prefix",
			prefix:     "test_",
			hexLength:  16,
			wantPrefix: "test_",
			wantLength: 21, // 5 + 16
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomID(tt.prefix, tt.hexLength)

			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("GenerateRandomID() = %v, want prefix %v", got, tt.wantPrefix)
			}

			if len(got) != tt.wantLength {
				t.Errorf("GenerateRandomID() length = %v, want %v", len(got), tt.wantLength)
			}

			// Check that the hex part is valid
			hexPart := got[len(tt.wantPrefix):]
			if !isValidHex(hexPart) {
				t.Errorf("GenerateRandomID() hex part = %v is not valid hex", hexPart)
			}
		})
	}
}

func TestGenerateRandomHex(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"zero length", 0, 0},
		{"negative length", -1, 0},
		{"small length", 8, 8},
		{"medium length", 16, 16},
		{"large length", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateRandomHex(tt.length)

			if len(got) != tt.want {
				t.Errorf("GenerateRandomHex() length = %v, want %v", len(got), tt.want)
			}

			if tt.want > 0 && !isValidHex(got) {
				t.Errorf("GenerateRandomHex() = %v is not valid hex", got)
			}
		})
	}
}

func TestGenerateSessionID(t *testing.T) {
	got := GenerateSessionID()

	if len(got) != 36 {
		t.Errorf("GenerateSessionID() length = %v, want 36", len(got))
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("GenerateSessionID() = %v does not parse as a UUID", got)
	}
	if got == GenerateSessionID() {
		t.Errorf("GenerateSessionID() returned the same id twice")
	}
}

func TestGenerateRequestID(t *testing.T) {
	got := GenerateRequestID()

	if !strings.HasPrefix(got, "req_") {
		t.Errorf("GenerateRequestID() = %v, want prefix req_", got)
	}

	if len(got) != 20 { // "req_" + 16 hex chars
		t.Errorf("GenerateRequestID() length = %v, want 20", len(got))
	}

	if !isValidHex(got[4:]) {
		t.Errorf("GenerateRequestID() hex part = %v is not valid hex", got[4:])
	}
}

func TestRandomIDUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		id := GenerateRandomID("test_", 16)
		if seen[id] {
			t.Errorf("GenerateRandomID() generated duplicate: %v", id)
		}
		seen[id] = true
	}
}

func TestRandomHexUniqueness(t *testing.T) {
	const iterations = 1000
	seen := make(map[string]bool)

	for i := 0; i < iterations; i++ {
		hex := GenerateRandomHex(16)
		if seen[hex] {
			t.Errorf("GenerateRandomHex() generated duplicate: %v", hex)
		}
		seen[hex] = true
	}
}

// Helper function to validate hex strings
func isValidHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"normal address", "jane.doe@example.com", "ja***@example.com"},
		{"short local part", "ab@example.com", "***@example.com"},
		{"single char local part", "a@example.com", "***@example.com"},
		{"not an email", "not-an-email", "***@***"},
		{"double at", "a@b@example.com", "***@***"},
		{"empty", "", "***@***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactEmail(tt.email); got != tt.want {
				t.Errorf("RedactEmail(%q) = %q, want %q", tt.email, got, tt.want)
			}
		})
	}
}

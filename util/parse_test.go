package util

import "testing"

func TestParseSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"10MB", 10 * 1024 * 1024},
		{"512KB", 512 * 1024},
		{"2GB", 2 * 1024 * 1024 * 1024},
		{"1024", 1024},
		{"64B", 64},
		{"  10MB  ", 10 * 1024 * 1024},
		{"10 mb", 10 * 1024 * 1024},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseSize(tc.input, 0); got != tc.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseSizeDefault(t *testing.T) {
	def := int64(5 * 1024 * 1024)
	for _, in := range []string{"", "invalid", "-1MB", "MB"} {
		if got := ParseSize(in, def); got != def {
			t.Errorf("ParseSize(%q) = %d, want default %d", in, got, def)
		}
	}
}

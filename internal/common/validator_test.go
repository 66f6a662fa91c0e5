package common

import "testing"

func TestStripNonDigits(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"(11) 99999-8888", "11999998888"},
		{"+55 11 99999 8888", "5511999998888"},
		{"11999998888", "11999998888"},
		{"abc", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := StripNonDigits(tt.input); got != tt.expected {
			t.Errorf("StripNonDigits(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestIsAllDigits(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"11999998888", true},
		{"119a99", false},
		{"", false},
		{"00000", true},
	}

	for _, tt := range tests {
		if got := IsAllDigits(tt.input); got != tt.expected {
			t.Errorf("IsAllDigits(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		countryCode string
		expected    string
		expectError bool
	}{
		{
			name:     "mobile without country code gets prefix",
			input:    "11999998888",
			expected: "5511999998888",
		},
		{
			name:     "formatted number is stripped first",
			input:    "(11) 99999-8888",
			expected: "5511999998888",
		},
		{
			name:     "international number left alone",
			input:    "5511999998888",
			expected: "5511999998888",
		},
		{
			name:     "landline with ten digits",
			input:    "1133334444",
			expected: "551133334444",
		},
		{
			name:        "too short is rejected",
			input:       "99998888",
			expectError: true,
		},
		{
			name:        "letters only is rejected",
			input:       "not-a-phone",
			expectError: true,
		},
		{
			name:        "custom country code",
			input:       "2125550123",
			countryCode: "1",
			expected:    "12125550123",
		},
		{
			name:        "non-numeric country code falls back to default",
			input:       "11999998888",
			countryCode: "+55",
			expected:    "5511999998888",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.input, tt.countryCode)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, got %q", got)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if got != tt.expected {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

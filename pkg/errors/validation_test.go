package errors

import (
	"strings"
	"testing"
)

func TestValidateTopic(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "news", false},
		{"valid with dash", "spot-news", false},
		{"valid with underscore", "spot_news", false},
		{"valid with dot", "spot.news", false},
		{"valid digits", "room42", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 200), true},
		{"dot dot", "a..b", true},
		{"slash", "a/b", true},
		{"space", "a b", true},
		{"control char", "a\x01b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTopic(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTopic(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidTopic) {
				t.Errorf("ValidateTopic(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidTopic)
			}
		})
	}
}

func TestValidateAttributeKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "title", false},
		{"valid with dash", "data-id", false},
		{"empty", "", true},
		{"newline", "ti\ntle", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttributeKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAttributeKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestParseCID(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"17", 17, false},
		{"-1", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCID(%q) = %d, want %d", tt.input, got, tt.want)
			}
			if err != nil && !Is(err, ErrCodeInvalidInput) {
				t.Errorf("ParseCID(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidInput)
			}
		})
	}
}

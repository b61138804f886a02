package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/shepherd/internal/app/system/htmlsanitize"
)

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Called on Tuesday", "Called on Tuesday"},
		{"trims", "  prayer request  ", "prayer request"},
		{"strips tags", "<b>Follow up</b>", "Follow up"},
		{"drops script body", "Hi<script>alert('x')</script>", "Hi"},
		{"keeps ampersand", "Tom & Jerry", "Tom & Jerry"},
		{"keeps quotes", `she said "amen"`, `she said "amen"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.Text(tt.input); got != tt.want {
				t.Errorf("Text(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsPlainText(t *testing.T) {
	if !htmlsanitize.IsPlainText("") {
		t.Error("expected empty string to be plain text")
	}
	if !htmlsanitize.IsPlainText("Hello, World!") {
		t.Error("expected string without tags to be plain text")
	}
	if htmlsanitize.IsPlainText("<p>Hello</p>") {
		t.Error("expected string with tags to NOT be plain text")
	}
}

package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Lowercases and trims",
			input: "  Anna Meier  ",
			want:  "anna meier",
		},
		{
			name:  "Strips diacritics",
			input: "José Müller",
			want:  "jose muller",
		},
		{
			name:  "French accents",
			input: "Hélène Favre-Dubois",
			want:  "helene favre-dubois",
		},
		{
			name:  "Already normalized",
			input: "peter keller",
			want:  "peter keller",
		},
		{
			name:  "Empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.input))
		})
	}
}

func TestNameMatches(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{
			name: "Exact match",
			a:    "Anna Meier",
			b:    "Anna Meier",
			want: true,
		},
		{
			name: "Case and accent insensitive",
			a:    "JOSÉ MÜLLER",
			b:    "jose muller",
			want: true,
		},
		{
			name: "Substring in either direction",
			a:    "Meier",
			b:    "Anna Meier",
			want: true,
		},
		{
			name: "Token containment with reordered compound name",
			a:    "Favre-Dubois Hélène",
			b:    "helene favre-dubois",
			want: true,
		},
		{
			name: "Registry holds additional middle name",
			a:    "Anna Meier",
			b:    "Anna Sophie Meier",
			want: true,
		},
		{
			name: "Different person",
			a:    "Anna Meier",
			b:    "Peter Keller",
			want: false,
		},
		{
			name: "Empty side never matches",
			a:    "",
			b:    "Anna Meier",
			want: false,
		},
		{
			name: "Both empty",
			a:    "",
			b:    "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NameMatches(tt.a, tt.b))
		})
	}
}

func TestExtractFirstName(t *testing.T) {
	tests := []struct {
		name     string
		fullName string
		want     string
	}{
		{
			name:     "Simple two-part name",
			fullName: "Anna Meier",
			want:     "Anna",
		},
		{
			name:     "Three-part name",
			fullName: "Maria Keller Brunner",
			want:     "Maria",
		},
		{
			name:     "Hyphenated first name",
			fullName: "Anne-Sophie Favre",
			want:     "Anne",
		},
		{
			name:     "Single name",
			fullName: "Madonna",
			want:     "Madonna",
		},
		{
			name:     "Leading and trailing spaces",
			fullName: "  Carlo  Bianchi  ",
			want:     "Carlo",
		},
		{
			name:     "Empty string",
			fullName: "",
			want:     "",
		},
		{
			name:     "Only spaces",
			fullName: "   ",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFirstName(tt.fullName))
		})
	}
}

func TestMaskName(t *testing.T) {
	tests := []struct {
		name     string
		fullName string
		want     string
	}{
		{
			name:     "Two-part name",
			fullName: "Anna Meier",
			want:     "Anna M****",
		},
		{
			name:     "Three-part name masks middle",
			fullName: "Maria Keller Brunner",
			want:     "Maria K***** Brunner",
		},
		{
			name:     "Single name",
			fullName: "Madonna",
			want:     "M******",
		},
		{
			name:     "Empty string",
			fullName: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskName(tt.fullName))
		})
	}
}

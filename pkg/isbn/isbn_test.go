package isbn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindCandidates(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"isbn13 with designator", "ISBN-13: 978-0-316-76948-8", []string{"ISBN-13: 978-0-316-76948-8"}},
		{"isbn10 with prefix", "ISBN 0-316-76948-7", []string{"ISBN 0-316-76948-7"}},
		{"bare digits", "code 9780316769488 fin", []string{"9780316769488"}},
		{"x checksum", "ISBN 080442957X", []string{"ISBN 080442957X"}},
		{"too short", "Dépôt légal : 2012", []string{}},
		{"two values", "ISBN 0316769487\nISBN 9780316769488", []string{"ISBN 0316769487", "ISBN 9780316769488"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FindCandidates(tt.text))
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		value    string
		expected string
	}{
		{"ISBN-13: 978-0-316-76948-8", "9780316769488"},
		{"ISBN 0-316-76948-7", "0316769487"},
		{"isbn10 080442957x", "080442957X"},
		{"1316769487", "1316769487"},
		{" 978 0 316 76948 8 ", "9780316769488"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.value))
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		value    string
		expected bool
	}{
		{"9780316769488", true},
		{"9780316769489", false},
		{"0316769487", true},
		{"080442957X", true},
		{"08044295X7", false},
		{"0316769488", false},
		{"031676948", false},
		{"978031676948A", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.expected, Valid(tt.value))
		})
	}
}

func TestExtract(t *testing.T) {
	text := `Dépôt légal : mars 2012
ISBN 978-0-316-76948-9
Imprimé en France
ISBN : 0-316-76948-7
ISBN-13: 978-0-316-76948-9`

	assert.Equal(t, []string{"0316769487", "9780316769489"}, Extract(text))
}

func TestExtract_Nothing(t *testing.T) {
	assert.Empty(t, Extract("Achevé d'imprimer en 2012"))
}

package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"anna.berg@example.com", "Anna Berg"},
		{"ANNA_BERG+stable@example.com", "Anna Berg"},
		{"mia@example.com", "Mia"},
		{"jean-luc.picard", "Jean Luc Picard"},
		{"+tag@example.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayName(tt.address))
		})
	}
}

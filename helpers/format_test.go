package helpers

import (
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCount(tt.in))
	}
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+1.23%", FormatPercent(0.0123))
	assert.Equal(t, "-50.00%", FormatPercent(-0.5))
	assert.Equal(t, "n/a", FormatReturn(null.Float{}))
	assert.Equal(t, "+10.00%", FormatReturn(null.FloatFrom(0.1)))
}

func TestShare(t *testing.T) {
	assert.Equal(t, "0.00%", Share(5, 0))
	assert.Equal(t, "25.00%", Share(1, 4))
}

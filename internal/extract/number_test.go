package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1,730", 1730, true},
		{"2,675", 2675, true},
		{"１，７３０", 1730, true},
		{"150.2", 150.2, true},
		{"+94,500", 94500, true},
		{"-45", -45, true},
		{"▲1,200", -1200, true},
		{"−1,200", -1200, true},
		{"－３５", -35, true},
		{"3.5%", 3.5, true},
		{"1,730円", 1730, true},
		{" 100 ", 100, true},
		{"0", 0, true},
		{"", 0, false},
		{"-", 0, false},
		{"--", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		minor int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{1120, "11.20"},
		{8400, "84.00"},
		{-480, "-4.80"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.minor))
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"25.00", 2500, false},
		{"25", 2500, false},
		{"0.5", 50, false},
		{"11.20", 1120, false},
		{"1.005", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBillableMinutes(t *testing.T) {
	start := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		elapsed time.Duration
		want    int64
	}{
		{"zero", 0, 0},
		{"negative", -time.Minute, 0},
		{"one nanosecond", time.Nanosecond, 1},
		{"exact minute", time.Minute, 1},
		{"7.4 minutes", 7*time.Minute + 24*time.Second, 8},
		{"exact hour", time.Hour, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BillableMinutes(start, start.Add(tt.elapsed)))
		})
	}
}

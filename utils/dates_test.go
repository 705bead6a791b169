package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddMonthsPreservesDayOfMonth(t *testing.T) {
	start := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	result := AddMonths(start, 1)

	assert.Equal(t, time.Date(2024, 4, 15, 10, 30, 0, 0, time.UTC), result)
}

func TestAddMonthsClampsToShorterMonth(t *testing.T) {
	start := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	result := AddMonths(start, 1)

	assert.Equal(t, time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), result)
}

func TestAddMonthsClampsToLeapDay(t *testing.T) {
	start := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	result := AddMonths(start, 1)

	assert.Equal(t, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), result)
}

func TestAddMonthsAcrossYearBoundary(t *testing.T) {
	start := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	result := AddMonths(start, 2)

	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), result)
}

func TestAddMonthsTwelveIsOneYear(t *testing.T) {
	start := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	result := AddMonths(start, 12)

	assert.Equal(t, time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC), result)
}

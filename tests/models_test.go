package tests

import (
	"testing"

	"github.com/clickwars/clickwars/models"
	"github.com/stretchr/testify/assert"
)

func TestCounterColorValidation(t *testing.T) {
	assert.True(t, models.IsValidCounterColor(models.CounterColorRed))
	assert.True(t, models.IsValidCounterColor(models.CounterColorBlue))

	assert.False(t, models.IsValidCounterColor("green"))
	assert.False(t, models.IsValidCounterColor(""))
	assert.False(t, models.IsValidCounterColor("RED"))
	assert.False(t, models.IsValidCounterColor("red "))
}

func TestAllCounterColors(t *testing.T) {
	assert.ElementsMatch(t, []string{models.CounterColorRed, models.CounterColorBlue}, models.AllCounterColors)
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "counters", models.Counter{}.TableName())
	assert.Equal(t, "counter_history", models.CounterHistory{}.TableName())
	assert.Equal(t, "migrations", models.Migration{}.TableName())
}

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnitScale_Multiplier(t *testing.T) {
	m, ok := ScaleUnits.Multiplier()
	assert.True(t, ok)
	assert.Equal(t, float64(1), m)

	m, ok = ScaleThousands.Multiplier()
	assert.True(t, ok)
	assert.Equal(t, float64(1e3), m)

	m, ok = ScaleMillions.Multiplier()
	assert.True(t, ok)
	assert.Equal(t, float64(1e6), m)

	_, ok = UnitScale("lakhs").Multiplier()
	assert.False(t, ok)
}

func TestSortPeriods(t *testing.T) {
	jun := time.Date(2024, time.June, 30, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)

	periods := []Period{
		{End: mar, Seq: 2},
		{End: jun, Seq: 1},
		{End: mar, Seq: 0},
	}
	SortPeriods(periods)

	assert.Equal(t, jun, periods[0].End)
	assert.Equal(t, mar, periods[1].End)
	assert.Equal(t, 0, periods[1].Seq, "equal end dates break ties by ingestion order")
	assert.Equal(t, 2, periods[2].Seq)
}

func TestStatement_Empty(t *testing.T) {
	assert.True(t, Statement{Type: CashFlow}.Empty())

	notReported := Statement{
		Type:    CashFlow,
		Items:   []string{"OperatingCashFlow"},
		Periods: []Period{{Items: map[string]Value{"OperatingCashFlow": {}}}},
	}
	assert.True(t, notReported.Empty())

	zero := Statement{
		Type:    CashFlow,
		Items:   []string{"OperatingCashFlow"},
		Periods: []Period{{Items: map[string]Value{"OperatingCashFlow": {Amount: 0, Reported: true}}}},
	}
	assert.False(t, zero.Empty(), "a reported zero is data")
}

func TestJobState_Terminal(t *testing.T) {
	assert.False(t, StateQueued.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.True(t, StateCancelled.Terminal())
}

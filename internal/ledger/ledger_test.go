package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kayafamilly/carpool-core/internal/models"
)

func TestComputeSplitGrossEqualsFeePlusNet(t *testing.T) {
	cases := []struct {
		gross   int64
		percent float64
	}{
		{gross: 1000, percent: 10},
		{gross: 999, percent: 10},
		{gross: 1, percent: 10},
		{gross: 0, percent: 10},
		{gross: 12345, percent: 7.5},
	}

	for _, c := range cases {
		fee, net := computeSplit(c.gross, c.percent)
		assert.Equal(t, c.gross, fee+net, "fee+net must equal gross for gross=%d pct=%v", c.gross, c.percent)
		assert.GreaterOrEqual(t, fee, int64(0))
		assert.GreaterOrEqual(t, net, int64(0))
	}
}

func TestComputeSplitRoundsHalfUp(t *testing.T) {
	// 1000 * 10% = 100.00 exactly, no rounding ambiguity.
	fee, net := computeSplit(1000, 10)
	assert.Equal(t, int64(100), fee)
	assert.Equal(t, int64(900), net)

	// 5 * 10% = 0.5 -> rounds up to 1.
	fee, net = computeSplit(5, 10)
	assert.Equal(t, int64(1), fee)
	assert.Equal(t, int64(4), net)
}

func TestTransactionKindAffectsBalance(t *testing.T) {
	assert.True(t, models.TxRideEarning.AffectsBalance())
	assert.True(t, models.TxRidePayment.AffectsBalance())
	assert.True(t, models.TxRefund.AffectsBalance())
	assert.False(t, models.TxPlatformFee.AffectsBalance())
}

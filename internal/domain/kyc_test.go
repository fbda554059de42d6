package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLimitsForLevel(t *testing.T) {
	// Level 0 cannot move money out at all
	zero := LimitsForLevel(0)
	assert.True(t, zero.SingleTransfer.IsZero())
	assert.True(t, zero.DailyTransfer.IsZero())

	one := LimitsForLevel(1)
	assert.True(t, one.SingleTransfer.Equal(decimal.NewFromInt(50_000)))
	assert.True(t, one.DailyTransfer.Equal(decimal.NewFromInt(200_000)))

	// Out-of-range levels clamp instead of panicking
	assert.True(t, LimitsForLevel(-3).SingleTransfer.Equal(zero.SingleTransfer))
	assert.True(t, LimitsForLevel(99).SingleTransfer.Equal(LimitsForLevel(MaxKYCLevel).SingleTransfer))
}

func TestLimitsGrowWithLevel(t *testing.T) {
	for level := 1; level <= MaxKYCLevel; level++ {
		lower := LimitsForLevel(level - 1)
		higher := LimitsForLevel(level)
		assert.True(t, higher.SingleTransfer.GreaterThan(lower.SingleTransfer), "level %d", level)
		assert.True(t, higher.MaxBalance.GreaterThan(lower.MaxBalance), "level %d", level)
	}
}

func TestRequiredKYCFieldsCoverEveryTier(t *testing.T) {
	for level := 1; level <= MaxKYCLevel; level++ {
		assert.NotEmpty(t, RequiredKYCFields[level], "level %d has no required fields", level)
	}
}

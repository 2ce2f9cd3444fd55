package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/soulseer/settlement/internal/models"
)

const basisPoints = 10000

// DefaultFeeBps is the platform's share when a category has no override (30%).
const DefaultFeeBps int64 = 3000

type Split struct {
	GrossAmount int64 `json:"grossAmount"`
	PlatformFee int64 `json:"platformFee"`
	NetAmount   int64 `json:"netAmount"`
}

// SplitCalculator divides a gross amount between the platform and the earning
// account. It is the only place fee ratios are applied.
type SplitCalculator struct {
	feeBps map[models.Category]int64
}

// NewSplitCalculator builds a calculator from per-category fee rates in basis
// points. Categories missing from the map use DefaultFeeBps.
func NewSplitCalculator(feeBps map[string]int64) (*SplitCalculator, error) {
	rates := make(map[models.Category]int64, len(feeBps))
	for category, bps := range feeBps {
		if bps < 0 || bps > basisPoints {
			return nil, fmt.Errorf("fee for category %q out of range: %d bps", category, bps)
		}
		rates[models.Category(category)] = bps
	}
	return &SplitCalculator{feeBps: rates}, nil
}

func (c *SplitCalculator) rate(category models.Category) int64 {
	if bps, ok := c.feeBps[category]; ok {
		return bps
	}
	if category == models.CategoryPromotional {
		return 0
	}
	return DefaultFeeBps
}

// Split computes the fee with round-half-up on the minor unit; the net amount
// is the remainder, so PlatformFee + NetAmount == GrossAmount always holds.
func (c *SplitCalculator) Split(gross int64, category models.Category) (Split, error) {
	if gross < 0 {
		return Split{}, fmt.Errorf("%w: gross %d", ErrInvalidAmount, gross)
	}
	fee := (gross*c.rate(category) + basisPoints/2) / basisPoints
	return Split{GrossAmount: gross, PlatformFee: fee, NetAmount: gross - fee}, nil
}

// EarningShare returns the part of amount attributable to the earning side of
// an original split, rounded half up.
func EarningShare(amount, originalNet, originalGross int64) int64 {
	if originalGross == 0 {
		return 0
	}
	share := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(originalNet)).
		DivRound(decimal.NewFromInt(originalGross), 0)
	return share.IntPart()
}

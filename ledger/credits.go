package ledger

import (
	"sort"

	"github.com/onnwee/spin-tracker/store"
)

// CreditItem is one derived spin credit entry: a qualifying donation or gift
// sub bundle, the number of spins it earns at the current threshold, and how
// many of those have been completed. It is computed on read and never
// persisted.
type CreditItem struct {
	ID             string     `json:"id"`
	Timestamp      string     `json:"timestamp"`
	Username       string     `json:"username"`
	Kind           store.Kind `json:"type"`
	Amount         int        `json:"amount"`
	SpinCount      int        `json:"spinCount"`
	CompletedCount int        `json:"completedCount"`
	Message        string     `json:"message,omitempty"`
}

// Pending returns the spins still owed on this item.
func (c CreditItem) Pending() int { return c.SpinCount - c.CompletedCount }

// ComputeCredits derives the credit list from raw records and the thresholds
// in force right now. A record whose amount is below its threshold
// contributes nothing, even if it was flagged spinTriggered back when the
// threshold was lower — raising a threshold retroactively shrinks the list,
// and that is accepted rather than reconciled. Items are sorted newest first.
// Both thresholds must be positive.
func ComputeCredits(donations []store.BitDonation, giftSubs []store.GiftSub, bitThreshold, giftSubThreshold int) []CreditItem {
	items := make([]CreditItem, 0, len(donations)+len(giftSubs))
	if bitThreshold > 0 {
		for _, d := range donations {
			if d.Bits < bitThreshold {
				continue
			}
			items = append(items, CreditItem{
				ID:             SpinID{Kind: store.KindBits, Timestamp: d.Timestamp}.String(),
				Timestamp:      d.Timestamp,
				Username:       d.Username,
				Kind:           store.KindBits,
				Amount:         d.Bits,
				SpinCount:      d.Bits / bitThreshold,
				CompletedCount: d.SpinCompletedCount,
				Message:        d.Message,
			})
		}
	}
	if giftSubThreshold > 0 {
		for _, g := range giftSubs {
			if g.SubCount < giftSubThreshold {
				continue
			}
			items = append(items, CreditItem{
				ID:             SpinID{Kind: store.KindGiftSubs, Timestamp: g.Timestamp}.String(),
				Timestamp:      g.Timestamp,
				Username:       g.Username,
				Kind:           store.KindGiftSubs,
				Amount:         g.SubCount,
				SpinCount:      g.SubCount / giftSubThreshold,
				CompletedCount: g.SpinCompletedCount,
			})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})
	return items
}

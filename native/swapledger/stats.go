package swapledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// UserStats returns the swap count and cumulative input volume credited to
// account as a swap initiator. Unknown accounts report zero stats.
func (l *Ledger) UserStats(ctx context.Context, account common.Address) (UserStats, error) {
	var stats UserStats
	err := l.read(ctx, func(v *view) error {
		var err error
		stats, err = v.stats(account)
		return err
	})
	return stats, err
}

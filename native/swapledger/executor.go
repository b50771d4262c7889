package swapledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

// ExecuteSwap validates req against current state and settles it atomically:
// the payer's input is burned, the recipient receives the net output, the fee
// recipient receives the fee and the caller's stats are updated. Nothing is
// written when any check fails.
func (l *Ledger) ExecuteSwap(ctx context.Context, caller common.Address, req SwapRequest) (record SwapRecord, err error) {
	ctx, finish := l.start(ctx, "execute_swap",
		attribute.String("caller", caller.Hex()),
		attribute.String("from", req.FromToken.Hex()),
		attribute.String("to", req.ToToken.Hex()))
	defer func() { finish(err) }()

	if caller == (common.Address{}) {
		return SwapRecord{}, ErrInvalidAddress
	}
	payer := req.Payer
	if payer == (common.Address{}) {
		payer = caller
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Resolve the rate outside the write transaction. The mutex keeps state
	// unchanged in between.
	var (
		rate     *big.Rat
		legsOK   bool
		from, to Token
	)
	if err := l.read(ctx, func(v *view) error {
		var legErr error
		from, to, legErr = v.swapLegs(req.FromToken, req.ToToken)
		legsOK = legErr == nil
		return nil
	}); err != nil {
		return SwapRecord{}, err
	}
	if legsOK {
		rate = l.resolveRate(ctx, from, to)
	}

	now := l.now()
	err = l.updateLocked(ctx, func(v *view) error {
		st, err := v.mustState()
		if err != nil {
			return err
		}
		if st.Paused {
			return ErrSystemPaused
		}
		if req.Deadline.Before(now) {
			return ErrDeadlineExpired
		}
		from, to, err = v.swapLegs(req.FromToken, req.ToToken)
		if err != nil {
			return err
		}
		if err := validateShape(req); err != nil {
			return err
		}
		if payer != caller {
			allowed, err := v.allowance(req.FromToken, payer, caller)
			if err != nil {
				return err
			}
			if allowed.Cmp(req.AmountIn) < 0 {
				return ErrInsufficientAllowance
			}
		}
		balance, err := v.balance(req.FromToken, payer)
		if err != nil {
			return err
		}
		if balance.Cmp(req.AmountIn) < 0 {
			return ErrInsufficientFunds
		}
		if rate == nil {
			rate = big.NewRat(1, 1)
		}
		terms, err := computeTerms(from, to, req.AmountIn, rate, st.FeeBps)
		if err != nil {
			return err
		}
		if terms.effective.Cmp(req.MinAmountOut) < 0 {
			return fmt.Errorf("%w: output %s below minimum %s", ErrSlippageExceeded, terms.effective, req.MinAmountOut)
		}

		if err := v.requireMinter(req.FromToken, l.address); err != nil {
			return err
		}
		if err := v.requireMinter(req.ToToken, l.address); err != nil {
			return err
		}
		if payer != caller {
			if err := v.spendAllowance(req.FromToken, payer, caller, req.AmountIn); err != nil {
				return err
			}
		}
		ledger := l.address
		if err := v.burn(req.FromToken, payer, req.AmountIn, ledger); err != nil {
			return err
		}
		if err := v.mint(req.ToToken, req.Recipient, terms.effective, ledger); err != nil {
			return err
		}
		if terms.fee.Sign() > 0 {
			if err := v.mint(req.ToToken, st.FeeRecipient, terms.fee, ledger); err != nil {
				return err
			}
		}

		st.SwapSequence++
		record = SwapRecord{
			Sequence:             st.SwapSequence,
			Caller:               caller,
			Payer:                payer,
			Recipient:            req.Recipient,
			FromToken:            req.FromToken,
			ToToken:              req.ToToken,
			AmountIn:             cloneInt(req.AmountIn),
			AmountOut:            terms.amountOut,
			EffectiveAmountOut:   terms.effective,
			FeeAmount:            terms.fee,
			FeeRecipient:         st.FeeRecipient,
			Rate:                 FormatRate(terms.rate),
			SlippageToleranceBps: req.SlippageToleranceBps,
			Timestamp:            now,
			Status:               SwapStatusCompleted,
		}
		record.ID = l.swapID(record)
		if err := v.putState(st); err != nil {
			return err
		}
		if err := v.appendSwapRecord(record, caller, payer, req.Recipient); err != nil {
			return err
		}
		stats, err := v.stats(caller)
		if err != nil {
			return err
		}
		stats.SwapCount++
		stats.CumulativeVolume = new(big.Int).Add(stats.CumulativeVolume, req.AmountIn)
		if err := v.putStats(stats); err != nil {
			return err
		}
		v.emit(events.SwapExecuted{
			ID:                 record.ID.Hex(),
			Sequence:           record.Sequence,
			Caller:             caller,
			Payer:              payer,
			Recipient:          req.Recipient,
			FromToken:          req.FromToken,
			ToToken:            req.ToToken,
			AmountIn:           cloneInt(record.AmountIn),
			AmountOut:          cloneInt(record.AmountOut),
			EffectiveAmountOut: cloneInt(record.EffectiveAmountOut),
			Fee:                cloneInt(record.FeeAmount),
			FeeRecipient:       record.FeeRecipient,
			Rate:               record.Rate,
			Timestamp:          now.Unix(),
		})
		return nil
	})
	if err != nil {
		if isValidationError(err) {
			l.logger.Debug("swap rejected", "caller", caller.Hex(), "reason", ErrorKind(err))
		} else {
			l.logger.Error("swap settlement failed", "caller", caller.Hex(), "error", err)
		}
		return SwapRecord{}, err
	}
	l.recordVolume(from, record.AmountIn)
	l.logger.Info("swap executed", "swap_id", record.ID.Hex(), "sequence", record.Sequence,
		"amount_in", record.AmountIn.String(), "amount_out", record.EffectiveAmountOut.String())
	return record.Copy(), nil
}

func validateShape(req SwapRequest) error {
	if err := checkAmount(req.AmountIn, false); err != nil {
		return err
	}
	if err := checkAmount(req.MinAmountOut, true); err != nil {
		return err
	}
	if req.Recipient == (common.Address{}) {
		return ErrInvalidAddress
	}
	if req.SlippageToleranceBps > bpsDenominator {
		return fmt.Errorf("%w: slippage tolerance above 100%%", ErrInvalidAmount)
	}
	return nil
}

func (v *view) requireMinter(token, account common.Address) error {
	ok, err := v.isMinter(token, account)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: ledger lacks mint authority on %s", ErrUnauthorized, token.Hex())
	}
	return nil
}

func (l *Ledger) recordVolume(from Token, amount *big.Int) {
	value, err := strconv.ParseFloat(FormatUnits(amount, from.Decimals), 64)
	if err != nil {
		return
	}
	l.metrics.RecordSwapVolume(from.Symbol, value)
}

// swapID derives a deterministic identifier from the ledger address, the
// sequence number and the swap parameters.
func (l *Ledger) swapID(r SwapRecord) common.Hash {
	var seq, ts [8]byte
	binary.BigEndian.PutUint64(seq[:], r.Sequence)
	binary.BigEndian.PutUint64(ts[:], unixNanos(r.Timestamp))
	return crypto.Keccak256Hash(
		l.address.Bytes(),
		seq[:],
		r.Caller.Bytes(),
		r.Payer.Bytes(),
		r.Recipient.Bytes(),
		r.FromToken.Bytes(),
		r.ToToken.Bytes(),
		r.AmountIn.Bytes(),
		ts[:],
	)
}

// SwapStatus returns the settlement record for id.
func (l *Ledger) SwapStatus(ctx context.Context, id common.Hash) (SwapRecord, error) {
	var rec SwapRecord
	err := l.read(ctx, func(v *view) error {
		var ok bool
		var err error
		rec, ok, err = v.swapRecord(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: swap %s", ErrNotFound, id.Hex())
		}
		return nil
	})
	return rec, err
}

// SwapHistory returns account's swaps newest first along with the total count.
func (l *Ledger) SwapHistory(ctx context.Context, account common.Address, limit, offset int) ([]SwapRecord, int, error) {
	var (
		out   []SwapRecord
		total int
	)
	err := l.read(ctx, func(v *view) error {
		ids, err := v.historyIDs(account)
		if err != nil {
			return err
		}
		total = len(ids)
		if offset < 0 {
			offset = 0
		}
		if offset >= total {
			return nil
		}
		if limit <= 0 || limit > total-offset {
			limit = total - offset
		}
		out = make([]SwapRecord, 0, limit)
		for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
			rec, ok, err := v.swapRecord(ids[i])
			if err != nil {
				return err
			}
			if ok {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, total, err
}

// ListSwaps returns swaps settled within [start, end] ordered by sequence. The
// cursor is the last sequence returned by a previous page; the returned cursor
// is empty once the range is exhausted. Zero times leave a bound open.
func (l *Ledger) ListSwaps(ctx context.Context, start, end int64, cursor string, limit int) ([]SwapRecord, string, error) {
	var after uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, "", fmt.Errorf("%w: invalid cursor", ErrInvalidAmount)
		}
		after = parsed
	}
	if limit <= 0 {
		limit = 100
	}
	var (
		out  []SwapRecord
		next string
	)
	err := l.read(ctx, func(v *view) error {
		entries, err := v.swapIndex()
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Sequence < entries[j].Sequence })
		for _, entry := range entries {
			if entry.Sequence <= after {
				continue
			}
			ts := int64(entry.Timestamp / 1e9)
			if start > 0 && ts < start {
				continue
			}
			if end > 0 && ts > end {
				continue
			}
			if len(out) == limit {
				next = strconv.FormatUint(out[len(out)-1].Sequence, 10)
				return nil
			}
			rec, ok, err := v.swapRecord(entry.ID)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, rec)
			}
		}
		return nil
	})
	return out, next, err
}

package swapledger

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/ayushsaklani-min/AutoXshift/core/events"
)

type storedState struct {
	Owner        common.Address
	FeeRecipient common.Address
	FeeBps       uint32
	Paused       bool
	SwapSequence uint64
}

type storedToken struct {
	Address     common.Address
	Symbol      string
	Name        string
	Decimals    uint8
	Owner       common.Address
	TotalSupply *big.Int
}

type storedSymbol struct {
	Address common.Address
}

type storedAmount struct {
	Value *big.Int
}

type storedMinters struct {
	Accounts []common.Address
}

type storedFlag struct {
	Enabled bool
}

type storedSwapRecord struct {
	ID                   common.Hash
	Sequence             uint64
	Caller               common.Address
	Payer                common.Address
	Recipient            common.Address
	FromToken            common.Address
	ToToken              common.Address
	AmountIn             *big.Int
	AmountOut            *big.Int
	EffectiveAmountOut   *big.Int
	FeeAmount            *big.Int
	FeeRecipient         common.Address
	Rate                 string
	SlippageToleranceBps uint32
	Timestamp            uint64
	Status               string
}

type storedStats struct {
	SwapCount uint64
	Volume    *big.Int
}

type swapIndexEntry struct {
	ID        common.Hash
	Sequence  uint64
	Timestamp uint64
}

// view wraps a transactional Storage with typed accessors. Events queued via
// emit are delivered by the ledger only after the surrounding transaction
// commits.
type view struct {
	s       Storage
	pending []events.Event
}

func (v *view) emit(ev events.Event) {
	v.pending = append(v.pending, ev)
}

func (v *view) state() (storedState, bool, error) {
	var st storedState
	ok, err := v.s.KVGet(stateKey, &st)
	if err != nil {
		return storedState{}, false, fmt.Errorf("load ledger state: %w", err)
	}
	return st, ok, nil
}

func (v *view) mustState() (storedState, error) {
	st, ok, err := v.state()
	if err != nil {
		return storedState{}, err
	}
	if !ok {
		return storedState{}, fmt.Errorf("ledger state not initialised")
	}
	return st, nil
}

func (v *view) putState(st storedState) error {
	if err := v.s.KVPut(stateKey, st); err != nil {
		return fmt.Errorf("persist ledger state: %w", err)
	}
	return nil
}

func (v *view) token(addr common.Address) (Token, bool, error) {
	var stored storedToken
	ok, err := v.s.KVGet(tokenKey(addr), &stored)
	if err != nil {
		return Token{}, false, fmt.Errorf("load token %s: %w", addr.Hex(), err)
	}
	if !ok {
		return Token{}, false, nil
	}
	return Token{
		Address:     stored.Address,
		Symbol:      stored.Symbol,
		Name:        stored.Name,
		Decimals:    stored.Decimals,
		Owner:       stored.Owner,
		TotalSupply: cloneInt(stored.TotalSupply),
	}, true, nil
}

func (v *view) requireToken(addr common.Address) (Token, error) {
	tok, ok, err := v.token(addr)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, fmt.Errorf("%w: token %s", ErrNotFound, addr.Hex())
	}
	return tok, nil
}

func (v *view) putToken(tok Token) error {
	stored := storedToken{
		Address:     tok.Address,
		Symbol:      normalizeSymbol(tok.Symbol),
		Name:        tok.Name,
		Decimals:    tok.Decimals,
		Owner:       tok.Owner,
		TotalSupply: cloneInt(tok.TotalSupply),
	}
	if err := v.s.KVPut(tokenKey(tok.Address), stored); err != nil {
		return fmt.Errorf("persist token %s: %w", tok.Address.Hex(), err)
	}
	return nil
}

func (v *view) tokenAddresses() ([]common.Address, error) {
	var raw [][]byte
	if err := v.s.KVGetList(tokenIndexKey, &raw); err != nil {
		return nil, fmt.Errorf("load token index: %w", err)
	}
	out := make([]common.Address, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != common.AddressLength {
			continue
		}
		out = append(out, common.BytesToAddress(entry))
	}
	return out, nil
}

func (v *view) symbolOwner(symbol string) (common.Address, bool, error) {
	var addr storedSymbol
	ok, err := v.s.KVGet(symbolKey(symbol), &addr)
	if err != nil {
		return common.Address{}, false, fmt.Errorf("load symbol %s: %w", symbol, err)
	}
	return addr.Address, ok, nil
}

func (v *view) registerToken(tok Token) error {
	if err := v.putToken(tok); err != nil {
		return err
	}
	if err := v.s.KVPut(symbolKey(tok.Symbol), storedSymbol{Address: tok.Address}); err != nil {
		return fmt.Errorf("persist symbol %s: %w", tok.Symbol, err)
	}
	if err := v.s.KVAppend(tokenIndexKey, tok.Address.Bytes()); err != nil {
		return fmt.Errorf("append token index: %w", err)
	}
	return nil
}

func (v *view) balance(token, holder common.Address) (*big.Int, error) {
	var stored storedAmount
	ok, err := v.s.KVGet(balanceKey(token, holder), &stored)
	if err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}
	if !ok {
		return new(big.Int), nil
	}
	return cloneInt(stored.Value), nil
}

func (v *view) setBalance(token, holder common.Address, amount *big.Int) error {
	if err := v.s.KVPut(balanceKey(token, holder), storedAmount{Value: cloneInt(amount)}); err != nil {
		return fmt.Errorf("persist balance: %w", err)
	}
	return nil
}

func (v *view) allowance(token, owner, spender common.Address) (*big.Int, error) {
	var stored storedAmount
	ok, err := v.s.KVGet(allowanceKey(token, owner, spender), &stored)
	if err != nil {
		return nil, fmt.Errorf("load allowance: %w", err)
	}
	if !ok {
		return new(big.Int), nil
	}
	return cloneInt(stored.Value), nil
}

func (v *view) setAllowance(token, owner, spender common.Address, amount *big.Int) error {
	if err := v.s.KVPut(allowanceKey(token, owner, spender), storedAmount{Value: cloneInt(amount)}); err != nil {
		return fmt.Errorf("persist allowance: %w", err)
	}
	return nil
}

func (v *view) minters(token common.Address) ([]common.Address, error) {
	var stored storedMinters
	if _, err := v.s.KVGet(minterKey(token), &stored); err != nil {
		return nil, fmt.Errorf("load minters: %w", err)
	}
	return append([]common.Address(nil), stored.Accounts...), nil
}

func (v *view) isMinter(token, account common.Address) (bool, error) {
	set, err := v.minters(token)
	if err != nil {
		return false, err
	}
	_, found := searchAddress(set, account)
	return found, nil
}

// setMinter adds or removes account and reports whether the set changed.
func (v *view) setMinter(token, account common.Address, present bool) (bool, error) {
	set, err := v.minters(token)
	if err != nil {
		return false, err
	}
	idx, found := searchAddress(set, account)
	switch {
	case present && found, !present && !found:
		return false, nil
	case present:
		set = append(set, common.Address{})
		copy(set[idx+1:], set[idx:])
		set[idx] = account
	default:
		set = append(set[:idx], set[idx+1:]...)
	}
	if err := v.s.KVPut(minterKey(token), storedMinters{Accounts: set}); err != nil {
		return false, fmt.Errorf("persist minters: %w", err)
	}
	return true, nil
}

func (v *view) supported(token common.Address) (bool, error) {
	var stored storedFlag
	if _, err := v.s.KVGet(supportedKey(token), &stored); err != nil {
		return false, fmt.Errorf("load supported flag: %w", err)
	}
	return stored.Enabled, nil
}

func (v *view) setSupported(token common.Address, enabled bool) error {
	if err := v.s.KVPut(supportedKey(token), storedFlag{Enabled: enabled}); err != nil {
		return fmt.Errorf("persist supported flag: %w", err)
	}
	return nil
}

func (v *view) swapRecord(id common.Hash) (SwapRecord, bool, error) {
	var stored storedSwapRecord
	ok, err := v.s.KVGet(swapRecordKey(id), &stored)
	if err != nil {
		return SwapRecord{}, false, fmt.Errorf("load swap %s: %w", id.Hex(), err)
	}
	if !ok {
		return SwapRecord{}, false, nil
	}
	return fromStoredSwap(stored), true, nil
}

func (v *view) appendSwapRecord(record SwapRecord, accounts ...common.Address) error {
	key := swapRecordKey(record.ID)
	if ok, err := v.s.KVGet(key, nil); err != nil {
		return fmt.Errorf("check swap %s: %w", record.ID.Hex(), err)
	} else if ok {
		return fmt.Errorf("swap %s already recorded", record.ID.Hex())
	}
	if err := v.s.KVPut(key, toStoredSwap(record)); err != nil {
		return fmt.Errorf("persist swap: %w", err)
	}
	entry := swapIndexEntry{ID: record.ID, Sequence: record.Sequence, Timestamp: unixNanos(record.Timestamp)}
	encoded, err := rlp.EncodeToBytes(entry)
	if err != nil {
		return err
	}
	if err := v.s.KVAppend(swapIndexKey, encoded); err != nil {
		return fmt.Errorf("append swap index: %w", err)
	}
	seen := make(map[common.Address]struct{}, len(accounts))
	for _, account := range accounts {
		if _, dup := seen[account]; dup || account == (common.Address{}) {
			continue
		}
		seen[account] = struct{}{}
		if err := v.s.KVAppend(swapHistoryKey(account), record.ID.Bytes()); err != nil {
			return fmt.Errorf("append swap history: %w", err)
		}
	}
	return nil
}

func (v *view) swapIndex() ([]swapIndexEntry, error) {
	var raw [][]byte
	if err := v.s.KVGetList(swapIndexKey, &raw); err != nil {
		return nil, fmt.Errorf("load swap index: %w", err)
	}
	entries := make([]swapIndexEntry, 0, len(raw))
	for _, encoded := range raw {
		if len(encoded) == 0 {
			continue
		}
		var entry swapIndexEntry
		if err := rlp.DecodeBytes(encoded, &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (v *view) historyIDs(account common.Address) ([]common.Hash, error) {
	var raw [][]byte
	if err := v.s.KVGetList(swapHistoryKey(account), &raw); err != nil {
		return nil, fmt.Errorf("load swap history: %w", err)
	}
	out := make([]common.Hash, 0, len(raw))
	for _, entry := range raw {
		if len(entry) != common.HashLength {
			continue
		}
		out = append(out, common.BytesToHash(entry))
	}
	return out, nil
}

func (v *view) stats(account common.Address) (UserStats, error) {
	var stored storedStats
	if _, err := v.s.KVGet(userStatsKey(account), &stored); err != nil {
		return UserStats{}, fmt.Errorf("load stats: %w", err)
	}
	return UserStats{Account: account, SwapCount: stored.SwapCount, CumulativeVolume: cloneInt(stored.Volume)}, nil
}

func (v *view) putStats(stats UserStats) error {
	stored := storedStats{SwapCount: stats.SwapCount, Volume: cloneInt(stats.CumulativeVolume)}
	if err := v.s.KVPut(userStatsKey(stats.Account), stored); err != nil {
		return fmt.Errorf("persist stats: %w", err)
	}
	return nil
}

func toStoredSwap(r SwapRecord) storedSwapRecord {
	return storedSwapRecord{
		ID:                   r.ID,
		Sequence:             r.Sequence,
		Caller:               r.Caller,
		Payer:                r.Payer,
		Recipient:            r.Recipient,
		FromToken:            r.FromToken,
		ToToken:              r.ToToken,
		AmountIn:             cloneInt(r.AmountIn),
		AmountOut:            cloneInt(r.AmountOut),
		EffectiveAmountOut:   cloneInt(r.EffectiveAmountOut),
		FeeAmount:            cloneInt(r.FeeAmount),
		FeeRecipient:         r.FeeRecipient,
		Rate:                 r.Rate,
		SlippageToleranceBps: r.SlippageToleranceBps,
		Timestamp:            unixNanos(r.Timestamp),
		Status:               string(r.Status),
	}
}

func fromStoredSwap(s storedSwapRecord) SwapRecord {
	return SwapRecord{
		ID:                   s.ID,
		Sequence:             s.Sequence,
		Caller:               s.Caller,
		Payer:                s.Payer,
		Recipient:            s.Recipient,
		FromToken:            s.FromToken,
		ToToken:              s.ToToken,
		AmountIn:             cloneInt(s.AmountIn),
		AmountOut:            cloneInt(s.AmountOut),
		EffectiveAmountOut:   cloneInt(s.EffectiveAmountOut),
		FeeAmount:            cloneInt(s.FeeAmount),
		FeeRecipient:         s.FeeRecipient,
		Rate:                 s.Rate,
		SlippageToleranceBps: s.SlippageToleranceBps,
		Timestamp:            fromUnixNanos(s.Timestamp),
		Status:               SwapStatus(s.Status),
	}
}

func searchAddress(set []common.Address, account common.Address) (int, bool) {
	idx := sort.Search(len(set), func(i int) bool {
		return bytes.Compare(set[i].Bytes(), account.Bytes()) >= 0
	})
	return idx, idx < len(set) && set[idx] == account
}

func unixNanos(ts time.Time) uint64 {
	if ts.IsZero() {
		return 0
	}
	n := ts.UTC().UnixNano()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func fromUnixNanos(n uint64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(n)).UTC()
}

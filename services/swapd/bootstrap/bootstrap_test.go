package bootstrap

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
	"github.com/ayushsaklani-min/AutoXshift/services/swapd/config"
)

var (
	ledgerAddr = common.HexToAddress(config.DefaultLedgerAddress)
	ownerAddr  = common.HexToAddress(config.DefaultOwnerAddress)
	aliceAddr  = common.HexToAddress("0x2000000000000000000000000000000000000001")
	minterAddr = common.HexToAddress("0x3000000000000000000000000000000000000001")
)

func seeds() []config.TokenSeed {
	decimals := uint8(6)
	yes, no := true, false
	return []config.TokenSeed{
		{
			Address:   "0x000000000000000000000000000000000000a001",
			Symbol:    "autox",
			Name:      "AutoX Token",
			Supported: &yes,
			Minters:   []string{minterAddr.Hex()},
			Balances:  map[string]string{aliceAddr.Hex(): "1000"},
		},
		{
			Address:   "0x000000000000000000000000000000000000a002",
			Symbol:    "SHIFT",
			Decimals:  &decimals,
			Supported: &no,
		},
	}
}

func newLedger(t *testing.T) *swapledger.Ledger {
	t.Helper()
	l, err := swapledger.New(context.Background(), swapledger.NewMemoryStore(), nil, swapledger.Config{
		Address: ledgerAddr,
		Owner:   ownerAddr,
	})
	require.NoError(t, err)
	return l
}

func TestApplySeedsTokens(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	res, err := Apply(ctx, l, seeds(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"AUTOX", "SHIFT"}, res.Registered)
	require.Equal(t, 1, res.Minted)

	autox, err := l.TokenBySymbol(ctx, "AUTOX")
	require.NoError(t, err)
	require.Equal(t, uint8(18), autox.Decimals)
	require.Equal(t, ownerAddr, autox.Owner)

	shift, err := l.TokenBySymbol(ctx, "SHIFT")
	require.NoError(t, err)
	require.Equal(t, uint8(6), shift.Decimals)

	for _, account := range []common.Address{ledgerAddr, minterAddr} {
		ok, err := l.IsMinter(ctx, autox.Address, account)
		require.NoError(t, err)
		require.True(t, ok, "expected %s to be an AUTOX minter", account.Hex())
	}

	supported, err := l.IsSupported(ctx, autox.Address)
	require.NoError(t, err)
	require.True(t, supported)
	supported, err = l.IsSupported(ctx, shift.Address)
	require.NoError(t, err)
	require.False(t, supported)

	bal, err := l.BalanceOf(ctx, autox.Address, aliceAddr)
	require.NoError(t, err)
	require.Equal(t, "1000", swapledger.FormatUnits(bal, 18))
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, err := Apply(ctx, l, seeds(), nil)
	require.NoError(t, err)

	res, err := Apply(ctx, l, seeds(), nil)
	require.NoError(t, err)
	require.Empty(t, res.Registered)
	require.Zero(t, res.Minted)

	autox, err := l.TokenBySymbol(ctx, "AUTOX")
	require.NoError(t, err)
	require.Equal(t, "1000", swapledger.FormatUnits(autox.TotalSupply, 18))
}

func TestApplyRejectsBadBalance(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	bad := seeds()[:1]
	bad[0].Balances = map[string]string{aliceAddr.Hex(): "not-a-number"}
	_, err := Apply(ctx, l, bad, nil)
	require.Error(t, err)
}

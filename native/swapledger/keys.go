package swapledger

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	stateKey           = []byte("swapledger/state")
	tokenPrefix        = []byte("swapledger/token/")
	tokenIndexKey      = []byte("swapledger/token/index")
	symbolPrefix       = []byte("swapledger/symbol/")
	balancePrefix      = []byte("swapledger/balance/")
	allowancePrefix    = []byte("swapledger/allowance/")
	minterPrefix       = []byte("swapledger/minters/")
	supportedPrefix    = []byte("swapledger/supported/")
	swapRecordPrefix   = []byte("swapledger/swap/")
	swapIndexKey       = []byte("swapledger/swap/index")
	swapHistoryPrefix  = []byte("swapledger/history/")
	userStatsPrefix    = []byte("swapledger/stats/")
	keySeparator       = byte('/')
	addressKeyCapacity = 2 * common.AddressLength
)

func prefixedKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for i, part := range parts {
		if i > 0 {
			size++
		}
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for i, part := range parts {
		if i > 0 {
			buf = append(buf, keySeparator)
		}
		buf = append(buf, part...)
	}
	return buf
}

func addrPart(addr common.Address) []byte {
	buf := make([]byte, 0, addressKeyCapacity)
	return append(buf, strings.ToLower(addr.Hex()[2:])...)
}

func tokenKey(token common.Address) []byte {
	return prefixedKey(tokenPrefix, addrPart(token))
}

func symbolKey(symbol string) []byte {
	return prefixedKey(symbolPrefix, []byte(normalizeSymbol(symbol)))
}

func balanceKey(token, holder common.Address) []byte {
	return prefixedKey(balancePrefix, addrPart(token), addrPart(holder))
}

func allowanceKey(token, owner, spender common.Address) []byte {
	return prefixedKey(allowancePrefix, addrPart(token), addrPart(owner), addrPart(spender))
}

func minterKey(token common.Address) []byte {
	return prefixedKey(minterPrefix, addrPart(token))
}

func supportedKey(token common.Address) []byte {
	return prefixedKey(supportedPrefix, addrPart(token))
}

func swapRecordKey(id common.Hash) []byte {
	return prefixedKey(swapRecordPrefix, []byte(strings.ToLower(id.Hex()[2:])))
}

func swapHistoryKey(account common.Address) []byte {
	return prefixedKey(swapHistoryPrefix, addrPart(account))
}

func userStatsKey(account common.Address) []byte {
	return prefixedKey(userStatsPrefix, addrPart(account))
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

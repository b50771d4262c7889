package swapledger

import "errors"

var (
	// ErrUnauthorized is returned when the caller lacks the role an operation requires.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnsupportedToken is returned when a swap leg is not whitelisted or both legs match.
	ErrUnsupportedToken = errors.New("unsupported token")
	// ErrInvalidAmount is returned for zero, negative or out-of-range amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidAddress is returned when a required account is the zero address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInsufficientFunds is returned when a holder balance cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientAllowance is returned when a delegated spender lacks approval.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	// ErrDeadlineExpired is returned when a swap is submitted past its deadline.
	ErrDeadlineExpired = errors.New("deadline expired")
	// ErrSlippageExceeded is returned when the settled output falls below the caller minimum.
	ErrSlippageExceeded = errors.New("slippage exceeded")
	// ErrSystemPaused is returned for swaps while the ledger is paused.
	ErrSystemPaused = errors.New("system paused")
	// ErrNotFound is returned for unknown tokens or swap records.
	ErrNotFound = errors.New("not found")
	// ErrTokenExists is returned when registering an address twice.
	ErrTokenExists = errors.New("token already registered")
	// ErrInvalidToken is returned when token metadata is malformed.
	ErrInvalidToken = errors.New("invalid token")

	errReadOnly = errors.New("swapledger: write attempted in read-only view")
)

// ErrorKind returns a stable snake_case label for ledger errors. Unknown errors
// map to "internal".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrUnsupportedToken):
		return "unsupported_token"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInsufficientAllowance):
		return "insufficient_allowance"
	case errors.Is(err, ErrDeadlineExpired):
		return "deadline_expired"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, ErrSystemPaused):
		return "system_paused"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTokenExists):
		return "token_exists"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal"
	}
}

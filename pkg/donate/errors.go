package donate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/chain"
)

// ErrUserRejected is returned by a wallet when its owner declines to
// sign.
var ErrUserRejected = errors.New("user rejected the request")

// ErrInProgress is returned when a donation is started while another
// one is still running on the same flow.
var ErrInProgress = errors.New("a donation is already in progress")

// Kind classifies a donation failure for the donor.
type Kind int

const (
	KindInvalid Kind = iota + 1
	KindUserCancelled
	KindInsufficientFunds
	KindBlockhashExpired
	KindNetwork
	KindUnknown
)

var kindNames = map[Kind]string{
	KindInvalid:           "invalid",
	KindUserCancelled:     "user_cancelled",
	KindInsufficientFunds: "insufficient_funds",
	KindBlockhashExpired:  "blockhash_expired",
	KindNetwork:           "network",
	KindUnknown:           "unknown",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

var kindMessages = map[Kind]string{
	KindUserCancelled:     "Transaction cancelled.",
	KindInsufficientFunds: "Insufficient funds for transaction.",
	KindBlockhashExpired:  "Transaction expired before it was confirmed. Please try again.",
	KindNetwork:           "The Solana network is busy or unreachable. Please try again shortly.",
	KindUnknown:           "Transaction failed. Please try again.",
}

// Error is a failed donation.
type Error struct {
	Kind  Kind
	State State // the state the flow failed in
	Err   error
	// Shortfall is the number of lamports missing, set for
	// KindInsufficientFunds raised by the balance check.
	Shortfall uint64
}

func (e *Error) Error() string {
	return fmt.Sprintf("donation failed while %s (%s): %v", e.State, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the text shown to the donor. Validation errors carry
// their own message, every other kind has a fixed one.
func (e *Error) Message() string {
	if e.Kind == KindInvalid {
		return e.Err.Error()
	}
	return kindMessages[e.Kind]
}

var (
	cancelledHints = []string{
		"user rejected",
		"rejected the request",
		"user denied",
		"user cancelled",
	}
	insufficientHints = []string{
		"insufficient funds",
		"insufficient lamports",
		"custom program error: 0x1",
		"attempt to debit an account but found no record of a prior credit",
	}
	blockhashHints = []string{
		"blockhash not found",
		"block height exceeded",
		"blockhashnotfound",
		"transactionexpiredblockheightexceeded",
	}
	networkHints = []string{
		"429",
		"too many requests",
		"rate limit",
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"no such host",
		"eof",
		"503",
		"502",
	}
)

func containsAny(s string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(s, h) {
			return true
		}
	}
	return false
}

// Classify maps an error returned by the wallet or the RPC node to a
// failure kind. Typed errors are checked first, then the error text.
func Classify(err error) Kind {
	if err == nil {
		return 0
	}

	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}

	if errors.Is(err, ErrUserRejected) {
		return KindUserCancelled
	}

	if errors.Is(err, chain.ErrBlockhashExpired) {
		return KindBlockhashExpired
	}

	msg := strings.ToLower(err.Error())
	var oc *chain.OnChainError
	if errors.As(err, &oc) {
		if containsAny(msg, insufficientHints) {
			return KindInsufficientFunds
		}
		return KindUnknown
	}

	switch {
	case containsAny(msg, cancelledHints):
		return KindUserCancelled
	case containsAny(msg, insufficientHints):
		return KindInsufficientFunds
	case containsAny(msg, blockhashHints):
		return KindBlockhashExpired
	}

	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	if containsAny(msg, networkHints) {
		return KindNetwork
	}
	return KindUnknown
}

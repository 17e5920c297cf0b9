package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1000000000

const solDecimals = 9

var maxLamports = new(big.Int).SetUint64(^uint64(0))

// ParseSOL parses a SOL amount such as "0.25". Non-numeric input is
// an error, range checks are left to the caller.
func ParseSOL(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, errors.New("amount is required")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// ToLamports converts a SOL amount to lamports, dropping precision
// below one lamport.
func ToLamports(sol decimal.Decimal) (uint64, error) {
	if sol.IsNegative() {
		return 0, fmt.Errorf("negative amount: %s", sol)
	}

	l := sol.Shift(solDecimals).Floor().BigInt()
	if l.Cmp(maxLamports) > 0 {
		return 0, fmt.Errorf("amount too large: %s", sol)
	}
	return l.Uint64(), nil
}

// FormatSOL renders lamports as a SOL amount without trailing zeros.
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -solDecimals).String()
}

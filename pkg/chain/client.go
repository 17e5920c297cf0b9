package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	log "github.com/inconshreveable/log15"
)

// ErrBlockhashExpired is returned when the chain passed the last
// valid block height of the transaction's blockhash before the
// transaction was confirmed.
var ErrBlockhashExpired = errors.New("block height exceeded: transaction blockhash expired")

// OnChainError is a transaction that landed but failed to execute.
type OnChainError struct {
	Signature solana.Signature
	Err       interface{}
}

func (e *OnChainError) Error() string {
	return fmt.Sprintf("transaction %s failed on chain: %v", e.Signature, e.Err)
}

// Endpoints of the public clusters.
var Clusters = map[string]string{
	"devnet":       rpc.DevNet_RPC,
	"testnet":      rpc.TestNet_RPC,
	"mainnet-beta": rpc.MainNetBeta_RPC,
	"localnet":     rpc.LocalNet_RPC,
}

// Endpoint resolves a cluster name to its RPC endpoint, anything else
// is returned as is.
func Endpoint(s string) string {
	if e, ok := Clusters[s]; ok {
		return e
	}
	return s
}

// rpcAPI is the subset of the Solana JSON RPC the client uses.
type rpcAPI interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

// Blockhash is a recent blockhash and the last block height at which
// a transaction referencing it can land.
type Blockhash struct {
	Hash                 solana.Hash
	LastValidBlockHeight uint64
}

// Client talks to a Solana RPC node at the confirmed commitment.
type Client struct {
	rpc          rpcAPI
	pollInterval time.Duration
}

// NewClient creates a client of the endpoint, or of the named
// cluster ("devnet", "testnet", "mainnet-beta", "localnet").
func NewClient(endpoint string) *Client {
	return &Client{
		rpc:          rpc.New(Endpoint(endpoint)),
		pollInterval: time.Second,
	}
}

func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	r, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, err
	}
	return r.Value, nil
}

func (c *Client) LatestBlockhash(ctx context.Context) (Blockhash, error) {
	r, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return Blockhash{}, err
	}

	if r.Value == nil {
		return Blockhash{}, errors.New("empty latest blockhash response")
	}

	return Blockhash{
		Hash:                 r.Value.Blockhash,
		LastValidBlockHeight: r.Value.LastValidBlockHeight,
	}, nil
}

// Send submits a signed transaction after a preflight simulation.
func (c *Client) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	return c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}

// Confirm waits until the transaction reaches the confirmed
// commitment. It returns an *OnChainError when the transaction
// executed with an error, and ErrBlockhashExpired when the block
// height passed lastValidBlockHeight first. RPC errors are returned
// as is, nothing is retried.
func (c *Client) Confirm(ctx context.Context, sig solana.Signature, lastValidBlockHeight uint64) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		r, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
		if err != nil {
			return err
		}

		if len(r.Value) > 0 && r.Value[0] != nil {
			st := r.Value[0]
			if st.Err != nil {
				return &OnChainError{Signature: sig, Err: st.Err}
			}

			switch st.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				log.Debug("transaction confirmed", "sig", sig, "slot", st.Slot)
				return nil
			}
		}

		height, err := c.rpc.GetBlockHeight(ctx, rpc.CommitmentConfirmed)
		if err != nil {
			return err
		}

		if height > lastValidBlockHeight {
			return ErrBlockhashExpired
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SignatureConfirmed reports whether the transaction is confirmed
// without an execution error. It searches the full transaction
// history of the node.
func (c *Client) SignatureConfirmed(ctx context.Context, sig string) (bool, error) {
	s, err := solana.SignatureFromBase58(sig)
	if err != nil {
		return false, err
	}

	r, err := c.rpc.GetSignatureStatuses(ctx, true, s)
	if err != nil {
		return false, err
	}

	if len(r.Value) == 0 || r.Value[0] == nil {
		return false, nil
	}

	st := r.Value[0]
	if st.Err != nil {
		return false, nil
	}

	return st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		st.ConfirmationStatus == rpc.ConfirmationStatusFinalized, nil
}

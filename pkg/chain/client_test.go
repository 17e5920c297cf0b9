package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRPC struct {
	balance   uint64
	blockhash solana.Hash
	statuses  []*rpc.SignatureStatusesResult
	heights   []uint64
	statusErr error

	statusCalls int
	heightCalls int
	searched    bool
}

func (f *fakeRPC) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return &rpc.GetBalanceResult{Value: f.balance}, nil
}

func (f *fakeRPC) GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	return &rpc.GetLatestBlockhashResult{
		Value: &rpc.LatestBlockhashResult{Blockhash: f.blockhash, LastValidBlockHeight: 150},
	}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}

	f.searched = search
	i := f.statusCalls
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	f.statusCalls++
	return &rpc.GetSignatureStatusesResult{Value: []*rpc.SignatureStatusesResult{f.statuses[i]}}, nil
}

func (f *fakeRPC) GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error) {
	i := f.heightCalls
	if i >= len(f.heights) {
		i = len(f.heights) - 1
	}
	f.heightCalls++
	return f.heights[i], nil
}

func newTestClient(f *fakeRPC) *Client {
	return &Client{rpc: f, pollInterval: time.Millisecond}
}

func TestConfirmWaitsForConfirmed(t *testing.T) {
	f := &fakeRPC{
		statuses: []*rpc.SignatureStatusesResult{
			nil,
			{ConfirmationStatus: rpc.ConfirmationStatusProcessed},
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
		},
		heights: []uint64{100},
	}

	err := newTestClient(f).Confirm(context.Background(), solana.Signature{1}, 150)
	require.NoError(t, err)
	assert.Equal(t, 3, f.statusCalls)
}

func TestConfirmOnChainError(t *testing.T) {
	f := &fakeRPC{
		statuses: []*rpc.SignatureStatusesResult{
			{ConfirmationStatus: rpc.ConfirmationStatusConfirmed, Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
		},
		heights: []uint64{100},
	}

	err := newTestClient(f).Confirm(context.Background(), solana.Signature{1}, 150)
	var oc *OnChainError
	assert.True(t, errors.As(err, &oc))
}

func TestConfirmBlockhashExpired(t *testing.T) {
	f := &fakeRPC{
		statuses: []*rpc.SignatureStatusesResult{nil},
		heights:  []uint64{149, 150, 151},
	}

	err := newTestClient(f).Confirm(context.Background(), solana.Signature{1}, 150)
	assert.Equal(t, ErrBlockhashExpired, err)
	assert.Equal(t, 3, f.heightCalls)
}

func TestConfirmRPCErrorNotRetried(t *testing.T) {
	rpcErr := errors.New("429 Too Many Requests")
	f := &fakeRPC{statusErr: rpcErr}

	err := newTestClient(f).Confirm(context.Background(), solana.Signature{1}, 150)
	assert.Equal(t, rpcErr, err)
}

func TestSignatureConfirmed(t *testing.T) {
	sig := solana.Signature{7}
	f := &fakeRPC{statuses: []*rpc.SignatureStatusesResult{{ConfirmationStatus: rpc.ConfirmationStatusFinalized}}}
	ok, err := newTestClient(f).SignatureConfirmed(context.Background(), sig.String())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, f.searched)

	f = &fakeRPC{statuses: []*rpc.SignatureStatusesResult{nil}}
	ok, err = newTestClient(f).SignatureConfirmed(context.Background(), sig.String())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = newTestClient(f).SignatureConfirmed(context.Background(), "not-a-signature")
	assert.Error(t, err)
}

func TestLatestBlockhashAndBalance(t *testing.T) {
	f := &fakeRPC{balance: 42, blockhash: solana.Hash{9}}
	c := newTestClient(f)

	b, err := c.Balance(context.Background(), solana.PublicKey{1})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), b)

	bh, err := c.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solana.Hash{9}, bh.Hash)
	assert.Equal(t, uint64(150), bh.LastValidBlockHeight)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, rpc.DevNet_RPC, Endpoint("devnet"))
	assert.Equal(t, "http://localhost:8899", Endpoint("http://localhost:8899"))
}

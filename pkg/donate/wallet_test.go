package donate

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/chain"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transferTx(w Wallet) *solana.Transaction {
	tx, err := chain.NewTransaction(chain.TransferInstruction(w.PublicKey(), recipient, 1500000000), w.PublicKey(), solana.Hash{1})
	if err != nil {
		panic(err)
	}
	return tx
}

func TestPromptWalletApprove(t *testing.T) {
	inner := newWallet()
	var out bytes.Buffer
	w := &PromptWallet{Wallet: inner, In: strings.NewReader("y\n"), Out: &out}

	tx := transferTx(w)
	err := w.SignTransaction(context.Background(), tx)
	require.NoError(t, err)
	require.NoError(t, tx.VerifySignatures())
	assert.Contains(t, out.String(), "transfer 1.5 SOL from "+inner.PublicKey().String()+" to "+recipient.String())
}

func TestPromptWalletReject(t *testing.T) {
	for _, answer := range []string{"n\n", "\n", ""} {
		w := &PromptWallet{Wallet: newWallet(), In: strings.NewReader(answer), Out: ioutil.Discard}
		err := w.SignTransaction(context.Background(), transferTx(w))
		assert.Equal(t, ErrUserRejected, err)
	}
}

func TestSummarizeProgramCall(t *testing.T) {
	w := newWallet()
	programID := solana.MustPublicKeyFromBase58("Buv5zyTkgj1pDDLKrt9q6Yy39vndTfFumEk7cLdwzmsA")
	ix, err := chain.DonateInstruction(programID, w.PublicKey(), recipient, 1, "hi")
	require.NoError(t, err)
	tx, err := chain.NewTransaction(ix, w.PublicKey(), solana.Hash{1})
	require.NoError(t, err)

	lines := Summarize(tx)
	require.Len(t, lines, 2)
	assert.Equal(t, "fee payer: "+w.PublicKey().String(), lines[0])
	assert.Contains(t, lines[1], "call program "+programID.String())
}

func TestLoadKeypairWallet(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		panic(err)
	}

	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	b, err := json.Marshal(ints)
	if err != nil {
		panic(err)
	}

	dir, err := ioutil.TempDir("", "keypair")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "id.json")
	err = ioutil.WriteFile(path, b, 0600)
	if err != nil {
		panic(err)
	}

	w, err := LoadKeypairWallet(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey())

	_, err = LoadKeypairWallet(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestSaveKeypairRoundTrip(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		panic(err)
	}

	dir, err := ioutil.TempDir("", "keypair")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "id.json")
	require.NoError(t, SaveKeypair(path, key))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())

	w, err := LoadKeypairWallet(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), w.PublicKey())
}

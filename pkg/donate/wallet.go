package donate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"strings"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/chain"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// KeypairWallet signs with a local ed25519 key.
type KeypairWallet struct {
	key solana.PrivateKey
}

func NewKeypairWallet(key solana.PrivateKey) *KeypairWallet {
	return &KeypairWallet{key: key}
}

// LoadKeypairWallet reads a keypair file in the solana-keygen JSON
// format.
func LoadKeypairWallet(path string) (*KeypairWallet, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return &KeypairWallet{key: key}, nil
}

// SaveKeypair writes key in the solana-keygen JSON format.
func SaveKeypair(path string, key solana.PrivateKey) error {
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}

	b, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, b, 0600)
}

func (w *KeypairWallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

func (w *KeypairWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	pk := w.key.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pk) {
			return &w.key
		}
		return nil
	})
	return err
}

// PromptWallet shows the transaction to its owner and only signs
// after an explicit yes.
type PromptWallet struct {
	Wallet
	In  io.Reader
	Out io.Writer
}

func (w *PromptWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	fmt.Fprintln(w.Out, "Transaction to sign:")
	for _, line := range Summarize(tx) {
		fmt.Fprintln(w.Out, "  "+line)
	}
	fmt.Fprint(w.Out, "Approve? [y/N]: ")

	answer, err := bufio.NewReader(w.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return w.Wallet.SignTransaction(ctx, tx)
	}
	return ErrUserRejected
}

// Summarize describes each instruction of the transaction. System
// transfers are decoded, other instructions are listed by program.
func Summarize(tx *solana.Transaction) []string {
	msg := &tx.Message
	var r []string
	if len(msg.AccountKeys) > 0 {
		r = append(r, "fee payer: "+msg.AccountKeys[0].String())
	}

	for i, inst := range msg.Instructions {
		if int(inst.ProgramIDIndex) >= len(msg.AccountKeys) {
			r = append(r, fmt.Sprintf("#%d: invalid program index", i))
			continue
		}

		prog := msg.AccountKeys[inst.ProgramIDIndex]
		if !prog.Equals(solana.SystemProgramID) {
			r = append(r, fmt.Sprintf("#%d: call program %s (%d accounts, %d bytes)", i, prog, len(inst.Accounts), len(inst.Data)))
			continue
		}

		metas := make([]*solana.AccountMeta, 0, len(inst.Accounts))
		for _, idx := range inst.Accounts {
			if int(idx) >= len(msg.AccountKeys) {
				break
			}
			pub := msg.AccountKeys[idx]
			writable, _ := msg.IsWritable(pub)
			metas = append(metas, &solana.AccountMeta{
				PublicKey:  pub,
				IsSigner:   msg.IsSigner(pub),
				IsWritable: writable,
			})
		}

		sysInst, err := system.DecodeInstruction(metas, inst.Data)
		if err != nil {
			r = append(r, fmt.Sprintf("#%d: system instruction (undecodable: %v)", i, err))
			continue
		}

		if t, ok := sysInst.Impl.(*system.Transfer); ok && len(metas) >= 2 {
			r = append(r, fmt.Sprintf("#%d: transfer %s SOL from %s to %s", i, chain.FormatSOL(*t.Lamports), metas[0].PublicKey, metas[1].PublicKey))
			continue
		}
		r = append(r, fmt.Sprintf("#%d: system instruction %d", i, sysInst.TypeID.Uint32()))
	}
	return r
}

package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// donateDiscriminator is the anchor method selector of the donate
// instruction: the first 8 bytes of sha256("global:donate").
var donateDiscriminator = func() [8]byte {
	var d [8]byte
	h := sha256.Sum256([]byte("global:donate"))
	copy(d[:], h[:8])
	return d
}()

// TransferInstruction moves lamports from one account to another
// with the system program.
func TransferInstruction(from, to solana.PublicKey, lamports uint64) solana.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}

// DonateInstruction calls the donation program's donate method. The
// program transfers the lamports from the donor to the fund wallet
// and logs the message.
//
// Accounts: donor (signer, writable), fund wallet (writable), system
// program. Data: discriminator, u64 amount, borsh string message.
func DonateInstruction(programID, donor, fundWallet solana.PublicKey, lamports uint64, message string) (solana.Instruction, error) {
	var buf bytes.Buffer
	buf.Write(donateDiscriminator[:])

	enc := bin.NewBorshEncoder(&buf)
	err := enc.WriteUint64(lamports, binary.LittleEndian)
	if err != nil {
		return nil, err
	}

	err = enc.WriteUint32(uint32(len(message)), binary.LittleEndian)
	if err != nil {
		return nil, err
	}

	err = enc.WriteBytes([]byte(message), false)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(donor).WRITE().SIGNER(),
		solana.Meta(fundWallet).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(programID, accounts, buf.Bytes()), nil
}

// NewTransaction wraps a single instruction paid by payer.
func NewTransaction(ix solana.Instruction, payer solana.PublicKey, blockhash solana.Hash) (*solana.Transaction, error) {
	return solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(payer),
	)
}

package chain

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	programID = solana.MustPublicKeyFromBase58("Buv5zyTkgj1pDDLKrt9q6Yy39vndTfFumEk7cLdwzmsA")
	fundAddr  = solana.MustPublicKeyFromBase58("8HACvxLFboKua6ARScPZsqHVCMAQ7MniL8AhNDxomV9Y")
)

func TestDonateInstructionLayout(t *testing.T) {
	donor := solana.NewWallet().PublicKey()
	ix, err := DonateInstruction(programID, donor, fundAddr, 1500000, "namaste")
	require.NoError(t, err)

	assert.Equal(t, programID, ix.ProgramID())

	accounts := ix.Accounts()
	require.Len(t, accounts, 3)
	assert.Equal(t, donor, accounts[0].PublicKey)
	assert.True(t, accounts[0].IsSigner)
	assert.True(t, accounts[0].IsWritable)
	assert.Equal(t, fundAddr, accounts[1].PublicKey)
	assert.False(t, accounts[1].IsSigner)
	assert.True(t, accounts[1].IsWritable)
	assert.Equal(t, solana.SystemProgramID, accounts[2].PublicKey)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 8+8+4+len("namaste"))
	assert.Equal(t, donateDiscriminator[:], data[:8])
	assert.Equal(t, uint64(1500000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(data[16:20]))
	assert.Equal(t, "namaste", string(data[20:]))
}

func TestTransferInstruction(t *testing.T) {
	donor := solana.NewWallet().PublicKey()
	ix := TransferInstruction(donor, fundAddr, 1000000)
	assert.Equal(t, solana.SystemProgramID, ix.ProgramID())

	inst, ok := ix.(*system.Instruction)
	require.True(t, ok)
	transfer, ok := inst.Impl.(*system.Transfer)
	require.True(t, ok)
	assert.Equal(t, uint64(1000000), *transfer.Lamports)
	assert.Equal(t, donor, transfer.GetFundingAccount().PublicKey)
	assert.Equal(t, fundAddr, transfer.GetRecipientAccount().PublicKey)
}

func TestNewTransactionPayer(t *testing.T) {
	donor := solana.NewWallet().PublicKey()
	tx, err := NewTransaction(TransferInstruction(donor, fundAddr, 1), donor, solana.Hash{1})
	require.NoError(t, err)
	assert.Equal(t, donor, tx.Message.AccountKeys[0])
	assert.Equal(t, solana.Hash{1}, tx.Message.RecentBlockhash)
}

package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// SignFunc signs a serialized transaction message.
type SignFunc func(ctx context.Context, message []byte) ([]byte, error)

// Transaction collects instructions for a single-signer transaction.
type Transaction struct {
	Instructions    []solana.Instruction
	FeePayer        solana.PublicKey
	RecentBlockhash solana.Hash
}

func NewTransaction(feePayer solana.PublicKey) *Transaction {
	return &Transaction{
		Instructions: make([]solana.Instruction, 0),
		FeePayer:     feePayer,
	}
}

func (tx *Transaction) AddTransferInstruction(from solana.PublicKey, to solana.PublicKey, amount uint64) {
	instruction := system.NewTransferInstruction(
		amount,
		from,
		to,
	).Build()
	tx.Instructions = append(tx.Instructions, instruction)
}

func (tx *Transaction) SetRecentBlockhash(blockhash solana.Hash) {
	tx.RecentBlockhash = blockhash
}

// Build compiles the instructions into an unsigned transaction.
func (tx *Transaction) Build() (*solana.Transaction, error) {
	if tx.RecentBlockhash.IsZero() {
		return nil, fmt.Errorf("blockhash is empty")
	}
	if len(tx.Instructions) == 0 {
		return nil, fmt.Errorf("transaction has no instructions")
	}

	stx, err := solana.NewTransaction(
		tx.Instructions,
		tx.RecentBlockhash,
		solana.TransactionPayer(tx.FeePayer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return stx, nil
}

// BuildAndSign compiles the transaction and signs it as the fee payer.
func (tx *Transaction) BuildAndSign(ctx context.Context, sign SignFunc) (*solana.Transaction, error) {
	stx, err := tx.Build()
	if err != nil {
		return nil, err
	}

	message, err := stx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}
	sig, err := sign(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if len(sig) != solana.SignatureLength {
		return nil, fmt.Errorf("signature is %d bytes, want %d", len(sig), solana.SignatureLength)
	}
	stx.Signatures = []solana.Signature{solana.SignatureFromBytes(sig)}

	if err := stx.VerifySignatures(); err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}
	return stx, nil
}

func ParseAddress(address string) (solana.PublicKey, error) {
	// Base58 doesn't use 0, O, I, or l
	for i, c := range address {
		if c == '0' || c == 'O' || c == 'I' || c == 'l' {
			return solana.PublicKey{}, fmt.Errorf("invalid character '%c' at position %d in Solana address", c, i)
		}
	}

	pubKey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid Solana address (%s): %w", address, err)
	}
	return pubKey, nil
}

func CreateTransferTransaction(from, to solana.PublicKey, amount uint64, recentBlockhash solana.Hash) *Transaction {
	tx := NewTransaction(from)
	tx.AddTransferInstruction(from, to, amount)
	tx.SetRecentBlockhash(recentBlockhash)
	return tx
}

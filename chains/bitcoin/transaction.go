package bitcoin

import (
	"bytes"
	"cmp"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DustLimit is the smallest change output worth creating, in satoshis.
const DustLimit = 546

// UTXO represents an unspent P2WPKH output owned by the signer
type UTXO struct {
	TxID  string
	Vout  uint32
	Value int64
}

// Transaction is a P2WPKH spend under construction
type Transaction struct {
	msg   *wire.MsgTx
	utxos []UTXO
}

// NewTransaction creates a new version 2 transaction
func NewTransaction() *Transaction {
	return &Transaction{msg: wire.NewMsgTx(2)}
}

// AddInput spends utxo
func (tx *Transaction) AddInput(utxo UTXO) error {
	prevHash, err := chainhash.NewHashFromStr(utxo.TxID)
	if err != nil {
		return fmt.Errorf("invalid previous transaction hash: %w", err)
	}
	tx.msg.AddTxIn(wire.NewTxIn(wire.NewOutPoint(prevHash, utxo.Vout), nil, nil))
	tx.utxos = append(tx.utxos, utxo)
	return nil
}

// AddOutput pays value satoshis to address
func (tx *Transaction) AddOutput(value int64, address btcutil.Address) error {
	script, err := txscript.PayToAddrScript(address)
	if err != nil {
		return fmt.Errorf("failed to create output script: %w", err)
	}
	tx.msg.AddTxOut(wire.NewTxOut(value, script))
	return nil
}

// Sign adds a witness to every input. All inputs must pay to the P2WPKH
// address of privateKey.
func (tx *Transaction) Sign(privateKey *btcec.PrivateKey, params *chaincfg.Params) error {
	address, err := CreateP2WPKHAddress(privateKey.PubKey(), params)
	if err != nil {
		return err
	}
	script, err := txscript.PayToAddrScript(address)
	if err != nil {
		return fmt.Errorf("failed to create script: %w", err)
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range tx.msg.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, wire.NewTxOut(tx.utxos[i].Value, script))
	}
	hashes := txscript.NewTxSigHashes(tx.msg, fetcher)

	for i, in := range tx.msg.TxIn {
		witness, err := txscript.WitnessSignature(tx.msg, hashes, i, tx.utxos[i].Value, script, txscript.SigHashAll, privateKey, true)
		if err != nil {
			return fmt.Errorf("failed to sign input %d: %w", i, err)
		}
		in.Witness = witness
	}
	return nil
}

// Hash returns the transaction id
func (tx *Transaction) Hash() string {
	return tx.msg.TxHash().String()
}

// Serialize returns the raw transaction bytes
func (tx *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.msg.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize parses raw transaction bytes
func Deserialize(raw []byte) (*wire.MsgTx, error) {
	msg := wire.NewMsgTx(2)
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	return msg, nil
}

// EncodeHex is the form Esplora accepts on POST /tx
func EncodeHex(raw []byte) string {
	return hex.EncodeToString(raw)
}

// EstimateVSize estimates the virtual size of a P2WPKH spend
func EstimateVSize(inputCount, outputCount int) int64 {
	// version + locktime + counts + segwit marker
	baseSize := 11

	// outpoint + empty script + sequence
	inputSize := 41

	// value + script length + 22 byte P2WPKH script
	outputSize := 31

	// witness items, counted at a quarter weight
	witnessSize := 108

	weight := 4*(baseSize+inputCount*inputSize+outputCount*outputSize) + inputCount*witnessSize
	return int64((weight + 3) / 4)
}

// ParseAddress parses a Bitcoin address for params
func ParseAddress(address string, params *chaincfg.Params) (btcutil.Address, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("invalid bitcoin address %q: %w", address, err)
	}
	if !addr.IsForNet(params) {
		return nil, fmt.Errorf("address %q is not for %s", address, params.Name)
	}
	return addr, nil
}

// CreateP2WPKHAddress creates a P2WPKH address from public key
func CreateP2WPKHAddress(publicKey *btcec.PublicKey, params *chaincfg.Params) (btcutil.Address, error) {
	pubKeyHash := btcutil.Hash160(publicKey.SerializeCompressed())
	return btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, params)
}

// InsufficientFundsError is returned when the spendable outputs cannot
// cover a payment and its fee.
type InsufficientFundsError struct {
	Have int64
	Need int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %d sat, need %d sat", e.Have, e.Need)
}

func largestFirst(utxos []UTXO) []UTXO {
	sorted := slices.Clone(utxos)
	slices.SortStableFunc(sorted, func(a, b UTXO) int { return cmp.Compare(b.Value, a.Value) })
	return sorted
}

// SelectUTXOs picks outputs, largest first, until they cover amount plus
// the fee at feeRate sat/vB. It returns the inputs, the fee and the change.
func SelectUTXOs(utxos []UTXO, amount, feeRate int64) ([]UTXO, int64, int64, error) {
	sorted := largestFirst(utxos)

	var total int64
	for i, u := range sorted {
		total += u.Value
		fee := EstimateVSize(i+1, 2) * feeRate
		if total < amount+fee {
			continue
		}
		change := total - amount - fee
		if change < DustLimit {
			// fold dust into the fee and drop the change output
			fee = total - amount
			change = 0
		}
		return sorted[:i+1], fee, change, nil
	}
	return nil, 0, 0, &InsufficientFundsError{Have: total, Need: amount + EstimateVSize(max(len(sorted), 1), 2)*feeRate}
}

// SelectUTXOsWithFee picks outputs, largest first, until they cover amount
// plus a fixed fee. Dust change is folded into the fee, which is returned
// with the change.
func SelectUTXOsWithFee(utxos []UTXO, amount, fee int64) ([]UTXO, int64, int64, error) {
	sorted := largestFirst(utxos)

	var total int64
	for i, u := range sorted {
		total += u.Value
		if total < amount+fee {
			continue
		}
		change := total - amount - fee
		if change < DustLimit {
			return sorted[:i+1], fee + change, 0, nil
		}
		return sorted[:i+1], fee, change, nil
	}
	return nil, 0, 0, &InsufficientFundsError{Have: total, Need: amount + fee}
}

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Hash is a 32-byte transaction identifier.
type Hash [32]byte

// String returns a shortened hex representation, suitable for logs.
func (h Hash) String() string {
	return hex.EncodeToString(h[:8])
}

// Hex returns the full hex representation.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Transaction is one unit of work executed by the VM. The payload is opaque
// to the sequencer; only the declared gas limit and the factory dependencies
// (novel bytecodes published alongside the transaction) are inspected.
type Transaction struct {
	Payload  []byte
	GasLimit uint64

	// FactoryDeps carries contract bytecodes that must be published with
	// this transaction. Most transactions carry none.
	FactoryDeps [][]byte
}

// Hash computes the canonical identifier of the transaction.
func (tx *Transaction) Hash() Hash {
	hasher := sha256.New()
	hasher.Write(tx.Payload)
	var gas [8]byte
	binary.BigEndian.PutUint64(gas[:], tx.GasLimit)
	hasher.Write(gas[:])
	for _, dep := range tx.FactoryDeps {
		hasher.Write(dep)
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// Package chain holds the queue's boundary with the blockchain layer:
// the opaque smart-account client, offline placeholder hashes, and
// submission error classification.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// SmartAccountClient sends encoded calls through an account-abstraction
// transaction layer. The queue never inspects it; processors receive it
// as-is and return the resulting transaction hash.
type SmartAccountClient interface {
	// SendCall submits calldata from the given sender on the given
	// chain and returns the confirmed transaction hash.
	SendCall(ctx context.Context, chainID int64, sender common.Address, callData []byte) (common.Hash, error)
}

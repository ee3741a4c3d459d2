package chain

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// OfflineHashPrefix marks a placeholder identifier for a job whose real
// transaction hash has not been minted yet. The prefix keeps placeholders
// from ever matching the 66-character shape of a genuine hash, so no
// downstream consumer can submit one on-chain.
const OfflineHashPrefix = "0xoffline-"

var realTxHashRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// OfflineTxHash derives a deterministic placeholder hash for a job id.
// The same id always yields the same placeholder.
func OfflineTxHash(jobID string) string {
	sum := crypto.Keccak256([]byte(jobID))
	return OfflineHashPrefix + hex.EncodeToString(sum[:24])
}

// IsOfflineTxHash reports whether s is a queue-local placeholder.
func IsOfflineTxHash(s string) bool {
	return strings.HasPrefix(s, OfflineHashPrefix)
}

// IsRealTxHash reports whether s has the shape of a minted 32-byte
// transaction hash.
func IsRealTxHash(s string) bool {
	return realTxHashRe.MatchString(s)
}

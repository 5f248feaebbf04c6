package keyderiv

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
)

// InitialCommitIndex is the starting value of the backwards counter used by
// the per-commitment secret scheme: commitment number i is stored/derived at
// backwards index InitialCommitIndex - i. This is the standard BOLT-3
// "generate_from_seed" scheme, replacing the elkrem hash-tree this signer's
// ancestor used.
const InitialCommitIndex = (1 << 48) - 1

// PerCommitmentSecret derives the 32-byte per-commitment secret for
// commitment number commitNum, given the channel's commitment seed. The
// derivation walks the 48-bit backwards index I = InitialCommitIndex -
// commitNum bit by bit from the most significant set bit down, flipping the
// corresponding bit of the seed and hashing with SHA-256 at each step —
// exactly as specified by BOLT-3.
func PerCommitmentSecret(seed [32]byte, commitNum uint64) [32]byte {
	index := InitialCommitIndex - commitNum

	secret := seed
	for b := 47; b >= 0; b-- {
		if index&(1<<uint(b)) == 0 {
			continue
		}
		secret[b/8] ^= 1 << uint(b%8)
		secret = sha256.Sum256(secret[:])
	}
	return secret
}

// PerCommitmentPoint derives the public per-commitment point for commitNum,
// i.e. the public key corresponding to PerCommitmentSecret(seed, commitNum).
func PerCommitmentPoint(seed [32]byte, commitNum uint64) *btcec.PublicKey {
	priv := PerCommitmentPrivateKey(seed, commitNum)
	return priv.PubKey()
}

// PerCommitmentPrivateKey derives the private key for commitNum, used only
// transiently at signing time or when validating a just-revealed revocation
// secret.
func PerCommitmentPrivateKey(seed [32]byte, commitNum uint64) *btcec.PrivateKey {
	secret := PerCommitmentSecret(seed, commitNum)
	priv, _ := btcec.PrivKeyFromBytes(secret[:])
	return priv
}

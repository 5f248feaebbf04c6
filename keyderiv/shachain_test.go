package keyderiv

import (
	"bytes"
	"testing"
)

// TestPerCommitmentSecretDeterministic checks that deriving the same index
// twice from the same seed is deterministic, and that two different indices
// produce different secrets.
func TestPerCommitmentSecretDeterministic(t *testing.T) {
	t.Parallel()

	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}

	s0a := PerCommitmentSecret(seed, 0)
	s0b := PerCommitmentSecret(seed, 0)
	if !bytes.Equal(s0a[:], s0b[:]) {
		t.Fatalf("commitment secret for index 0 not deterministic")
	}

	s1 := PerCommitmentSecret(seed, 1)
	if bytes.Equal(s0a[:], s1[:]) {
		t.Fatalf("commitment secrets for index 0 and 1 must differ")
	}
}

// TestPerCommitmentPointMatchesPrivateKey checks that the public point
// derived for an index is the public key of the private key derived for
// the same index.
func TestPerCommitmentPointMatchesPrivateKey(t *testing.T) {
	t.Parallel()

	var seed [32]byte
	for i := range seed {
		seed[i] = byte(2 * i)
	}

	for _, idx := range []uint64{0, 1, 2, 1000} {
		priv := PerCommitmentPrivateKey(seed, idx)
		point := PerCommitmentPoint(seed, idx)

		if !priv.PubKey().IsEqual(point) {
			t.Fatalf("commitment point for index %d does not match derived private key's public key", idx)
		}
	}
}

// TestChannelID0Deterministic checks that the same nonce always maps to
// the same channel id, and that different nonces map to different ids.
func TestChannelID0Deterministic(t *testing.T) {
	t.Parallel()

	id1 := ChannelID0([]byte("nonce0"))
	id2 := ChannelID0([]byte("nonce0"))
	if id1 != id2 {
		t.Fatalf("channel id for the same nonce must be deterministic")
	}

	id3 := ChannelID0([]byte("nonce1"))
	if id1 == id3 {
		t.Fatalf("channel ids for different nonces must differ")
	}
}

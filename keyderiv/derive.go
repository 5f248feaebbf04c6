package keyderiv

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
)

// tweakHash computes SHA256(a || b), the scalar tweak BOLT-3 uses throughout
// §3.4 ("Key Derivation") to combine a basepoint with a per-commitment point.
func tweakHash(a, b *btcec.PublicKey) [32]byte {
	h := sha256.New()
	h.Write(a.SerializeCompressed())
	h.Write(b.SerializeCompressed())
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func addPubKeys(a, b *btcec.PublicKey) *btcec.PublicKey {
	var ja, jb, sum btcec.JacobianPoint
	a.AsJacobian(&ja)
	b.AsJacobian(&jb)
	btcec.AddNonConst(&ja, &jb, &sum)
	sum.ToAffine()
	return btcec.NewPublicKey(&sum.X, &sum.Y)
}

func scalarMultPubKey(p *btcec.PublicKey, scalar [32]byte) *btcec.PublicKey {
	var k btcec.ModNScalar
	k.SetBytes(&scalar)

	var jp, result btcec.JacobianPoint
	p.AsJacobian(&jp)
	btcec.ScalarMultNonConst(&k, &jp, &result)
	result.ToAffine()
	return btcec.NewPublicKey(&result.X, &result.Y)
}

func scalarBaseMult(scalar [32]byte) *btcec.PublicKey {
	var k btcec.ModNScalar
	k.SetBytes(&scalar)

	var result btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&k, &result)
	result.ToAffine()
	return btcec.NewPublicKey(&result.X, &result.Y)
}

// DerivePubKey derives a per-commitment public key (delayed-payment, HTLC, or
// non-static payment key) from its basepoint and the per-commitment point,
// following BOLT-3: pubkey = basepoint + SHA256(per_commitment_point ||
// basepoint)*G.
func DerivePubKey(basepoint, perCommitmentPoint *btcec.PublicKey) *btcec.PublicKey {
	tweak := tweakHash(perCommitmentPoint, basepoint)
	return addPubKeys(basepoint, scalarBaseMult(tweak))
}

// DerivePrivKey derives the private key counterpart of DerivePubKey, for use
// only at signing time with locally-held basepoint secrets.
func DerivePrivKey(basepointSecret *btcec.PrivateKey, perCommitmentPoint *btcec.PublicKey) *btcec.PrivateKey {
	tweak := tweakHash(perCommitmentPoint, basepointSecret.PubKey())

	var tweakScalar, sum btcec.ModNScalar
	tweakScalar.SetBytes(&tweak)
	sum.Set(&basepointSecret.Key).Add(&tweakScalar)

	return btcec.PrivKeyFromScalar(&sum)
}

// DeriveRevocationPubKey derives the revocation public key for a commitment
// from the revocation basepoint and the per-commitment point, per BOLT-3:
//
//	revocationpubkey = revocation_basepoint*SHA256(revocation_basepoint ||
//	    per_commitment_point) + per_commitment_point*SHA256(
//	    per_commitment_point || revocation_basepoint)
//
// Only the party who eventually learns the per-commitment *secret* (after
// revocation) can combine the two tweaks into the corresponding private key;
// see DeriveRevocationPrivKey.
func DeriveRevocationPubKey(revocationBasepoint, perCommitmentPoint *btcec.PublicKey) *btcec.PublicKey {
	t1 := tweakHash(revocationBasepoint, perCommitmentPoint)
	t2 := tweakHash(perCommitmentPoint, revocationBasepoint)

	return addPubKeys(
		scalarMultPubKey(revocationBasepoint, t1),
		scalarMultPubKey(perCommitmentPoint, t2),
	)
}

// DeriveRevocationPrivKey derives the revocation private key given the
// locally-held revocation basepoint secret and the per-commitment secret
// revealed by the counterparty after revoking the corresponding state. This
// is the key that lets the honest party sweep a revoked commitment's
// to-local output via the justice path.
func DeriveRevocationPrivKey(revocationBaseSecret *btcec.PrivateKey, perCommitmentSecret *btcec.PrivateKey) *btcec.PrivateKey {
	revocationBasepoint := revocationBaseSecret.PubKey()
	perCommitmentPoint := perCommitmentSecret.PubKey()

	t1 := tweakHash(revocationBasepoint, perCommitmentPoint)
	t2 := tweakHash(perCommitmentPoint, revocationBasepoint)

	var s1, s2, t1s, t2s btcec.ModNScalar
	t1s.SetBytes(&t1)
	t2s.SetBytes(&t2)
	s1.Set(&revocationBaseSecret.Key).Mul(&t1s)
	s2.Set(&perCommitmentSecret.Key).Mul(&t2s)

	sum := s1.Add(&s2)
	return btcec.PrivKeyFromScalar(sum)
}

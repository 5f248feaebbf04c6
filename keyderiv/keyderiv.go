// Package keyderiv deterministically derives node, channel and
// per-commitment key material from a single root seed. Every function here
// is pure: given the same seed and the same nonce/index, it always returns
// the same keys. No key material is ever written to disk by this package;
// callers hold the derived secrets only as long as they need them.
package keyderiv

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"golang.org/x/crypto/hkdf"
)

// HardenedKeyStart is the index at which hardened BIP32 derivation begins.
const HardenedKeyStart = uint32(hdkeychain.HardenedKeyStart)

// BIP0043Purpose is the purpose field used for all derivations performed by
// this signer, following the BIP-43 convention of namespacing derivation
// subtrees by purpose.
const BIP0043Purpose = 1017

// KeyFamily enumerates the BIP32 account-level subtrees under which basepoint
// and node keys are derived.
type KeyFamily uint32

const (
	KeyFamilyNodeKey KeyFamily = iota
	KeyFamilyFunding
	KeyFamilyRevocationBase
	KeyFamilyPaymentBase
	KeyFamilyDelayBase
	KeyFamilyHtlcBase
	KeyFamilyCommitSeed
)

// ChannelBasepoints holds the five per-channel basepoints negotiated during
// channel open, plus the seed used to derive per-commitment points/secrets.
type ChannelBasepoints struct {
	FundingKey          *btcec.PublicKey
	RevocationBasePoint *btcec.PublicKey
	PaymentBasePoint    *btcec.PublicKey
	DelayBasePoint      *btcec.PublicKey
	HtlcBasePoint       *btcec.PublicKey
	CommitmentSeed      [32]byte
}

// KeyRing derives all key material for a single node from its root seed. It
// holds no mutable state; every method is safe for concurrent use.
type KeyRing struct {
	params    *chaincfg.Params
	masterKey *hdkeychain.ExtendedKey
}

// NewKeyRing builds a KeyRing from a 32-byte seed.
func NewKeyRing(seed [32]byte, params *chaincfg.Params) (*KeyRing, error) {
	master, err := hdkeychain.NewMaster(seed[:], params)
	if err != nil {
		return nil, fmt.Errorf("keyderiv: deriving master key: %w", err)
	}

	return &KeyRing{params: params, masterKey: master}, nil
}

// deriveChildren walks the extended key down the given path of (possibly
// hardened) child indices.
func deriveChildren(base *hdkeychain.ExtendedKey, path []uint32) (*hdkeychain.ExtendedKey, error) {
	var (
		next = base
		err  error
	)
	for _, idx := range path {
		next, err = next.Child(idx)
		if err != nil {
			return nil, fmt.Errorf("keyderiv: derive child %d: %w", idx, err)
		}
	}
	return next, nil
}

// NodeKey derives the node-wide identity private key at
// m/1017'/coinType'/0'/0/0.
func (k *KeyRing) NodeKey() (*btcec.PrivateKey, error) {
	leaf, err := deriveChildren(k.masterKey, []uint32{
		HardenedKeyStart + BIP0043Purpose,
		HardenedKeyStart + uint32(k.params.HDCoinType),
		HardenedKeyStart + uint32(KeyFamilyNodeKey),
		0,
		0,
	})
	if err != nil {
		return nil, err
	}
	return leaf.ECPrivKey()
}

// channelIndex hashes an arbitrary-length channel nonce down to a 32-bit
// BIP32 child index and a 32-byte channel identifier (id0). The child index
// is derived from the first four bytes of the channel-id hash so that two
// channels with distinct nonces deterministically land on distinct,
// non-adversarially-steerable subtrees.
func channelIndex(nonce []byte) (id0 [32]byte, index uint32) {
	id0 = sha256.Sum256(append([]byte("chanid"), nonce...))
	index = binary.BigEndian.Uint32(id0[:4]) & 0x7fffffff
	return id0, index
}

// ChannelID0 computes the initial (pre-funding) channel identifier from a
// client-supplied nonce. It never changes for the lifetime of the channel,
// even after the funding outpoint becomes known and a permanent id is
// assigned.
func ChannelID0(nonce []byte) [32]byte {
	id0, _ := channelIndex(nonce)
	return id0
}

// basepointKey derives the private key for one of the five channel
// basepoints, or the commitment seed, at
// m/1017'/coinType'/family'/0/channelIndex.
func (k *KeyRing) basepointKey(family KeyFamily, nonce []byte) (*btcec.PrivateKey, error) {
	_, index := channelIndex(nonce)

	leaf, err := deriveChildren(k.masterKey, []uint32{
		HardenedKeyStart + BIP0043Purpose,
		HardenedKeyStart + uint32(k.params.HDCoinType),
		HardenedKeyStart + uint32(family),
		0,
		index,
	})
	if err != nil {
		return nil, err
	}
	return leaf.ECPrivKey()
}

// ChannelBasepoints derives the five public basepoints and the commitment
// seed for the channel identified by nonce.
func (k *KeyRing) ChannelBasepoints(nonce []byte) (*ChannelBasepoints, error) {
	families := []KeyFamily{
		KeyFamilyFunding, KeyFamilyRevocationBase, KeyFamilyPaymentBase,
		KeyFamilyDelayBase, KeyFamilyHtlcBase,
	}
	pubs := make([]*btcec.PublicKey, len(families))
	for i, fam := range families {
		priv, err := k.basepointKey(fam, nonce)
		if err != nil {
			return nil, err
		}
		pubs[i] = priv.PubKey()
	}

	seedKey, err := k.basepointKey(KeyFamilyCommitSeed, nonce)
	if err != nil {
		return nil, err
	}

	seed := deriveCommitmentSeed(seedKey)

	return &ChannelBasepoints{
		FundingKey:          pubs[0],
		RevocationBasePoint: pubs[1],
		PaymentBasePoint:    pubs[2],
		DelayBasePoint:      pubs[3],
		HtlcBasePoint:       pubs[4],
		CommitmentSeed:      seed,
	}, nil
}

// ChannelPrivateKey returns the private key backing one of the five channel
// basepoints, used only at signing time (never persisted).
func (k *KeyRing) ChannelPrivateKey(family KeyFamily, nonce []byte) (*btcec.PrivateKey, error) {
	return k.basepointKey(family, nonce)
}

// deriveCommitmentSeed derives the 32-byte root used by the "backwards
// counting" per-commitment scheme (see shachain.go) via HKDF-SHA256,
// domain-separated from the basepoint derivation above so that knowledge of
// one never leaks the other.
func deriveCommitmentSeed(seedKey *btcec.PrivateKey) [32]byte {
	secret := seedKey.Serialize()
	reader := hkdf.New(sha256.New, secret, nil, []byte("commitment-seed"))

	var seed [32]byte
	// hkdf.Read never fails to fill a 32-byte buffer from a SHA-256-based
	// HKDF instance; the entropy horizon is 255*32 bytes.
	if _, err := reader.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("keyderiv: hkdf exhausted: %v", err))
	}
	return seed
}

// TweakPubKeyAdd adds a scalar (serialized big-endian) to a base point,
// producing the tweaked per-commitment public key used for delayed and HTLC
// outputs: P' = P + t*G.
func TweakPubKeyAdd(base *btcec.PublicKey, tweak []byte) *btcec.PublicKey {
	var tweakScalar btcec.ModNScalar
	tweakScalar.SetByteSlice(tweak)

	var tweakPoint, basePoint, sum btcec.JacobianPoint
	base.AsJacobian(&basePoint)
	btcec.ScalarBaseMultNonConst(&tweakScalar, &tweakPoint)
	btcec.AddNonConst(&basePoint, &tweakPoint, &sum)
	sum.ToAffine()

	return btcec.NewPublicKey(&sum.X, &sum.Y)
}

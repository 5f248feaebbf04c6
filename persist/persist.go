// Package persist provides durable storage for node and channel state. The
// validator never calls into this package directly: signer.Node and
// signer.Channel persist the EnforcementState a validation call proposes
// before releasing any signature, so a crash between validation and
// persistence never loses the fact that a state transition was accepted.
package persist

import (
	"encoding/json"
	"fmt"

	"github.com/lightningnetwork/validating-signer/keyderiv"
	"github.com/lightningnetwork/validating-signer/policy"
)

// ChannelRecord is the durable record of one channel: its setup (fixed at
// open) and its current enforcement state (advanced on every accepted
// validation).
type ChannelRecord struct {
	Nonce []byte
	Setup policy.ChannelSetup
	State policy.EnforcementState
}

// Persister is the storage contract the signer depends on. Implementations
// must make PutChannel durable before returning, since the caller relies on
// that to guarantee it never signs the same state twice after a crash.
type Persister interface {
	// NodeSeed returns the persisted node seed. If none exists yet it
	// creates and persists one: the result of newSeed if newSeed is
	// non-nil, otherwise a fresh random seed.
	NodeSeed(newSeed func() ([32]byte, error)) ([32]byte, error)

	PutChannel(nodeID string, rec *ChannelRecord) error
	GetChannel(nodeID string, nonce []byte) (*ChannelRecord, error)
	ListChannels(nodeID string) ([]*ChannelRecord, error)

	PutAllowlist(nodeID string, addresses []string) error
	GetAllowlist(nodeID string) ([]string, error)

	Close() error
}

func channelKey(nonce []byte) []byte {
	id := keyderiv.ChannelID0(nonce)
	return id[:]
}

func marshalRecord(rec *ChannelRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("persist: marshalling channel record: %w", err)
	}
	return b, nil
}

func unmarshalRecord(b []byte) (*ChannelRecord, error) {
	var rec ChannelRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("persist: unmarshalling channel record: %w", err)
	}
	return &rec, nil
}

func marshalAddresses(addresses []string) ([]byte, error) {
	b, err := json.Marshal(addresses)
	if err != nil {
		return nil, fmt.Errorf("persist: marshalling allowlist: %w", err)
	}
	return b, nil
}

func unmarshalAddresses(b []byte) ([]string, error) {
	var addresses []string
	if err := json.Unmarshal(b, &addresses); err != nil {
		return nil, fmt.Errorf("persist: unmarshalling allowlist: %w", err)
	}
	return addresses, nil
}

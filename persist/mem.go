package persist

import (
	"crypto/rand"
	"fmt"
	"sync"
)

// MemPersister is an in-memory Persister, used by tests and by
// signer/loopback where durability across process restarts is not needed.
type MemPersister struct {
	mu         sync.Mutex
	seeds      map[string][32]byte
	channels   map[string]map[string]*ChannelRecord // nodeID -> channelKey -> record
	allowlists map[string][]string
}

// NewMemPersister returns an empty MemPersister.
func NewMemPersister() *MemPersister {
	return &MemPersister{
		seeds:      make(map[string][32]byte),
		channels:   make(map[string]map[string]*ChannelRecord),
		allowlists: make(map[string][]string),
	}
}

func (m *MemPersister) NodeSeed(newSeed func() ([32]byte, error)) ([32]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	const nodeID = "default"
	if seed, ok := m.seeds[nodeID]; ok {
		return seed, nil
	}

	var seed [32]byte
	var err error
	if newSeed != nil {
		seed, err = newSeed()
	} else {
		_, err = rand.Read(seed[:])
	}
	if err != nil {
		return [32]byte{}, fmt.Errorf("persist: generating node seed: %w", err)
	}

	m.seeds[nodeID] = seed
	return seed, nil
}

func (m *MemPersister) PutChannel(nodeID string, rec *ChannelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey, ok := m.channels[nodeID]
	if !ok {
		byKey = make(map[string]*ChannelRecord)
		m.channels[nodeID] = byKey
	}

	// Round-trip through JSON so the stored record matches exactly what a
	// real, serialized implementation would persist and later return.
	raw, err := marshalRecord(rec)
	if err != nil {
		return err
	}
	stored, err := unmarshalRecord(raw)
	if err != nil {
		return err
	}

	byKey[string(channelKey(rec.Nonce))] = stored
	return nil
}

func (m *MemPersister) GetChannel(nodeID string, nonce []byte) (*ChannelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey, ok := m.channels[nodeID]
	if !ok {
		return nil, fmt.Errorf("persist: no channels persisted for node %s", nodeID)
	}
	rec, ok := byKey[string(channelKey(nonce))]
	if !ok {
		return nil, fmt.Errorf("persist: no channel found for nonce %x", nonce)
	}
	return rec, nil
}

func (m *MemPersister) ListChannels(nodeID string) ([]*ChannelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey := m.channels[nodeID]
	recs := make([]*ChannelRecord, 0, len(byKey))
	for _, rec := range byKey {
		recs = append(recs, rec)
	}
	return recs, nil
}

func (m *MemPersister) PutAllowlist(nodeID string, addresses []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.allowlists[nodeID] = append([]string(nil), addresses...)
	return nil
}

func (m *MemPersister) GetAllowlist(nodeID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.allowlists[nodeID]...), nil
}

func (m *MemPersister) Close() error {
	return nil
}

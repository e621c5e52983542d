package sennheiser

import (
	"math/rand"
	"sync"
)

// CallMap is the bidirectional table between softphone conversation ids and
// the vendor's transient numeric call ids. It is owned by this adapter and
// scoped to its connection lifetime; no other component mutates it.
//
// Both directions are inserted and removed together, always as a pair. A
// second removal for the same call is treated as stale and reports false
// rather than failing: the vendor ending a call races the app ending it.
type CallMap struct {
	mu             sync.Mutex
	byConversation map[string]int
	byVendor       map[int]string
}

func NewCallMap() *CallMap {
	return &CallMap{
		byConversation: make(map[string]int),
		byVendor:       make(map[int]string),
	}
}

// Allocate generates a fresh vendor call id for the conversation and inserts
// the pair. A conversation has at most one live mapping: allocating again
// replaces the previous pair.
//
// The id is a bounded random 7-digit integer; it carries no persistent
// identity and is never reused across connections on purpose.
func (m *CallMap) Allocate(conversationID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byConversation[conversationID]; ok {
		delete(m.byVendor, old)
	}

	id := rand.Intn(9000000) + 1000000
	for {
		if _, taken := m.byVendor[id]; !taken {
			break
		}
		id = rand.Intn(9000000) + 1000000
	}

	m.byConversation[conversationID] = id
	m.byVendor[id] = conversationID
	return id
}

func (m *CallMap) VendorID(conversationID string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byConversation[conversationID]
	return id, ok
}

func (m *CallMap) ConversationID(vendorID int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byVendor[vendorID]
	return conv, ok
}

// RemoveByConversation deletes the pair; false means it was already gone.
func (m *CallMap) RemoveByConversation(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byConversation[conversationID]
	if !ok {
		return false
	}
	delete(m.byConversation, conversationID)
	delete(m.byVendor, id)
	return true
}

// RemoveByVendor deletes the pair and returns the conversation it belonged
// to; false means it was already gone.
func (m *CallMap) RemoveByVendor(vendorID int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.byVendor[vendorID]
	if !ok {
		return "", false
	}
	delete(m.byVendor, vendorID)
	delete(m.byConversation, conv)
	return conv, true
}

// Pairs returns a snapshot of all live vendor ids keyed by conversation.
func (m *CallMap) Pairs() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.byConversation))
	for conv, id := range m.byConversation {
		out[conv] = id
	}
	return out
}

func (m *CallMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byConversation)
}

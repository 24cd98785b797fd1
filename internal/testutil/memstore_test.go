package testutil

import "testing"

func TestMemoryStoreConformance(t *testing.T) {
	m := NewMemoryStore()
	RunStoreSuite(t, m.Stores(), func(t *testing.T) { m.Reset() })
}

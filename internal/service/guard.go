package service

import (
	"sync"

	"github.com/google/uuid"
)

// vaultGuard serializes mutating operations per vault. The database row lock
// already guarantees consistency; the in-process mutex keeps a single node
// from queueing redundant SELECT ... FOR UPDATE waiters on the hot row.
type vaultGuard struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newVaultGuard() *vaultGuard {
	return &vaultGuard{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// lock acquires the per-vault mutex and returns its unlock func.
func (g *vaultGuard) lock(vaultID uuid.UUID) func() {
	g.mu.Lock()
	m, ok := g.locks[vaultID]
	if !ok {
		m = &sync.Mutex{}
		g.locks[vaultID] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}

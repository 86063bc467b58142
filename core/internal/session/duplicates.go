package session

import (
	"sync"
	"time"
)

// DuplicateWindow registra los ClOrdID vistos por session key durante un TTL.
//
// Es solo observacional: un duplicado se reporta y se entrega igual. Thread-safe
// para acceso concurrente desde todas las sesiones.
type DuplicateWindow struct {
	entries map[duplicateKey]*DuplicateEntry
	mu      sync.RWMutex
	ttl     time.Duration
}

type duplicateKey struct {
	session string
	clOrdID string
}

// DuplicateEntry primera aparición de un ClOrdID.
type DuplicateEntry struct {
	ClOrdID   string
	FirstSeen time.Time
	LastSeen  time.Time
	Count     int
}

// NewDuplicateWindow crea una ventana vacía.
func NewDuplicateWindow(ttl time.Duration) *DuplicateWindow {
	return &DuplicateWindow{
		entries: make(map[duplicateKey]*DuplicateEntry),
		ttl:     ttl,
	}
}

// Observe registra clOrdID para la session key.
//
// Retorna:
//   - dup: true si el ClOrdID ya se vio dentro del TTL
//   - entry: copia de la entrada actualizada
func (w *DuplicateWindow) Observe(key, clOrdID string, now time.Time) (dup bool, entry DuplicateEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	k := duplicateKey{session: key, clOrdID: clOrdID}
	existing, ok := w.entries[k]
	if ok && now.Sub(existing.FirstSeen) <= w.ttl {
		existing.LastSeen = now
		existing.Count++
		return true, *existing
	}

	e := &DuplicateEntry{ClOrdID: clOrdID, FirstSeen: now, LastSeen: now, Count: 1}
	w.entries[k] = e
	return false, *e
}

// Cleanup elimina entries con TTL expirado.
//
// Retorna el número de entries eliminadas.
func (w *DuplicateWindow) Cleanup(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for k, entry := range w.entries {
		if now.Sub(entry.FirstSeen) > w.ttl {
			delete(w.entries, k)
			removed++
		}
	}
	return removed
}

// Size retorna el número de entries actuales.
func (w *DuplicateWindow) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

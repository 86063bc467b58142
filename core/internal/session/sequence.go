package session

import "sync"

// UnknownSessionKey agrupa a los peers cuyo primer frame no trae SenderCompID.
//
// Todas esas conexiones comparten un único contador de secuencia.
const UnknownSessionKey = "UNKNOWN"

// SequenceTracker mantiene el próximo MsgSeqNum esperado por session key.
//
// Es el único estado compartido entre sesiones. Vive lo que vive el proceso:
// una reconexión con la misma key continúa donde quedó.
type SequenceTracker struct {
	mu       sync.Mutex
	expected map[string]int
}

// NewSequenceTracker crea un tracker vacío.
func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{expected: make(map[string]int)}
}

// ValidateAndAdvance compara received con el valor esperado (1 si la key es nueva).
//
// Si coinciden, el esperado pasa a expected+1 y ok es true. Si no, el esperado
// se resincroniza a received+1 y ok es false; el caller decide cómo registrarlo.
// expected es el valor que se esperaba antes de la llamada.
func (t *SequenceTracker) ValidateAndAdvance(key string, received int) (ok bool, expected int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	expected = t.current(key)
	if received == expected {
		t.expected[key] = expected + 1
		return true, expected
	}
	t.expected[key] = received + 1
	return false, expected
}

// Skip avanza el esperado en uno sin validar (frame sin MsgSeqNum usable).
// Retorna el valor esperado antes de avanzar.
func (t *SequenceTracker) Skip(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	expected := t.current(key)
	t.expected[key] = expected + 1
	return expected
}

// Expected retorna el próximo MsgSeqNum esperado para key.
func (t *SequenceTracker) Expected(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current(key)
}

// Reset olvida el contador de key.
func (t *SequenceTracker) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.expected, key)
}

// ResetAll olvida todos los contadores.
func (t *SequenceTracker) ResetAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expected = make(map[string]int)
}

// Len cantidad de keys con contador.
func (t *SequenceTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.expected)
}

func (t *SequenceTracker) current(key string) int {
	if v, ok := t.expected[key]; ok {
		return v
	}
	return 1
}

package delivery

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/twh32/my-fix-project/sdk/utils"
	bolt "go.etcd.io/bbolt"
)

const outboxBucketName = "outbox"

// Ledger persiste en bbolt las órdenes pendientes de entrega.
//
// Las claves son UUIDv7, por lo que el cursor recorre los registros en orden
// de creación.
type Ledger struct {
	db *bolt.DB
}

// OutboxRecord entrada del ledger.
//
// NextRetryAt en 0 indica que el registro no se reintenta más (dead letter).
type OutboxRecord struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Payload     []byte `json:"payload"`
	Attempt     int    `json:"attempt"`
	NextRetryAt int64  `json:"next_retry_at"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
	LastError   string `json:"last_error"`
}

// Exhausted indica que el registro agotó sus reintentos.
func (r *OutboxRecord) Exhausted() bool {
	return r.NextRetryAt == 0
}

// OpenLedger abre (o crea) el archivo bbolt en path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir ledger path: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(outboxBucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close cierra el archivo.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Put inserta o reemplaza un registro.
func (l *Ledger) Put(record *OutboxRecord) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(outboxBucketName))
		data, err := utils.MarshalJSON(record)
		if err != nil {
			return err
		}
		return b.Put([]byte(record.ID), data)
	})
}

// Get retorna el registro o nil si no existe.
func (l *Ledger) Get(id string) (*OutboxRecord, error) {
	var rec *OutboxRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(outboxBucketName)).Get([]byte(id))
		if len(data) == 0 {
			return nil
		}
		var r OutboxRecord
		if err := utils.UnmarshalJSON(data, &r); err != nil {
			return err
		}
		rec = &r
		return nil
	})
	return rec, err
}

// UpdateAttempt actualiza intento, próximo reintento y último error.
//
// Un nextRetry cero deja el registro fuera de ListDue.
func (l *Ledger) UpdateAttempt(id string, attempt int, nextRetry time.Time, lastError string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(outboxBucketName))
		key := []byte(id)
		data := b.Get(key)
		if len(data) == 0 {
			return nil
		}
		var rec OutboxRecord
		if err := utils.UnmarshalJSON(data, &rec); err != nil {
			return err
		}
		rec.Attempt = attempt
		rec.NextRetryAt = 0
		if !nextRetry.IsZero() {
			rec.NextRetryAt = nextRetry.UnixMilli()
		}
		rec.UpdatedAt = utils.NowUnixMilli()
		rec.LastError = lastError
		updated, err := utils.MarshalJSON(rec)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

// Delete elimina el registro (entrega confirmada).
func (l *Ledger) Delete(id string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(outboxBucketName)).Delete([]byte(id))
	})
}

// ListDue retorna hasta limit registros con NextRetryAt <= before.
func (l *Ledger) ListDue(before time.Time, limit int) ([]*OutboxRecord, error) {
	results := make([]*OutboxRecord, 0, limit)
	err := l.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(outboxBucketName)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) == 0 {
				continue
			}
			var rec OutboxRecord
			if err := utils.UnmarshalJSON(v, &rec); err != nil {
				continue
			}
			if rec.NextRetryAt == 0 || time.UnixMilli(rec.NextRetryAt).After(before) {
				continue
			}
			results = append(results, &rec)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	})
	return results, err
}

// Stats cuenta registros pendientes y agotados.
func (l *Ledger) Stats() (pending, exhausted int, err error) {
	err = l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(outboxBucketName)).ForEach(func(_, v []byte) error {
			var rec OutboxRecord
			if err := utils.UnmarshalJSON(v, &rec); err != nil {
				return nil
			}
			if rec.Exhausted() {
				exhausted++
			} else {
				pending++
			}
			return nil
		})
	})
	return pending, exhausted, err
}

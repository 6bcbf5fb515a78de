package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const journalPrefix = "journal:"

const (
	JournalTrade    = "trade"
	JournalSettings = "settings"
	JournalCommand  = "command"
)

// Journal appends audit records to a Store. It is write-only: nothing in the
// bot reads it back, state always starts empty.
type Journal struct {
	store Store
	now   func() time.Time
	seq   atomic.Uint64
}

func NewJournal(store Store) *Journal {
	return &Journal{store: store, now: time.Now}
}

// JournalPrefix returns the key prefix used for records of kind.
func JournalPrefix(kind string) string {
	return journalPrefix + kind + ":"
}

// Record stores payload as JSON under a key ordered by time.
func (j *Journal) Record(ctx context.Context, kind string, payload any) error {
	if j == nil || j.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	seq := j.seq.Add(1)
	key := fmt.Sprintf("%s%020d:%06d", JournalPrefix(kind), j.now().UnixNano(), seq%1000000)
	return j.store.Set(ctx, key, string(raw))
}

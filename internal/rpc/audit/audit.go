// Package audit persists a short history of terminated streams so an
// operator can answer "why did this console/migration stream die" after
// the fact (SPEC_FULL.md §12). Entries are encoded with tinylib/msgp and
// stored in an embedded tidwall/buntdb database, keyed by client and
// record time so the most recent retain entries per client survive.
package audit

import (
	"fmt"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/nimbusd/nimbusd/pkg/cos"
	"github.com/nimbusd/nimbusd/pkg/nlog"
)

//go:generate msgp

// Entry is one terminated-stream record.
type Entry struct {
	Client    string `msg:"client"`
	Procedure uint64 `msg:"procedure"`
	Serial    uint64 `msg:"serial"`
	BytesIn   uint64 `msg:"bytes_in"`
	BytesOut  uint64 `msg:"bytes_out"`
	Reason    string `msg:"reason"`
	Checksum  uint64 `msg:"checksum"`
	At        int64  `msg:"at"` // unix nanos
}

// Recorder is the narrow interface internal/rpc calls through.
type Recorder interface {
	Record(e Entry)
}

// NoOp discards every entry; the default when no audit store is configured.
type NoOp struct{}

func (NoOp) Record(Entry) {}

// Log is a buntdb-backed Recorder, retaining at most Retain entries per
// client (oldest dropped first).
type Log struct {
	db     *buntdb.DB
	retain int
	now    func() time.Time
}

// Open opens (creating if absent) a buntdb file at path.
func Open(path string, retain int) (*Log, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	if retain <= 0 {
		retain = 200
	}
	return &Log{db: db, retain: retain, now: time.Now}, nil
}

func (l *Log) Close() error { return l.db.Close() }

func (l *Log) Record(e Entry) {
	if e.At == 0 {
		e.At = l.now().UnixNano()
	}
	e.Checksum = cos.Checksum64([]byte(fmt.Sprintf("%s|%d|%d|%d", e.Client, e.Procedure, e.Serial, e.BytesIn)))

	buf, err := e.MarshalMsg(nil)
	if err != nil {
		nlog.Warningf("audit: marshal entry for %s/%d: %v", e.Client, e.Serial, err)
		return
	}
	key := fmt.Sprintf("stream:%s:%020d", e.Client, e.At)
	err = l.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(buf), nil)
		return err
	})
	if err != nil {
		nlog.Warningf("audit: persist entry for %s/%d: %v", e.Client, e.Serial, err)
		return
	}
	l.evict(e.Client)
}

// evict drops the oldest entries for client beyond the retention bound.
func (l *Log) evict(client string) {
	var keys []string
	prefix := "stream:" + client + ":"
	_ = l.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(prefix+"*", func(k, _ string) bool {
			keys = append(keys, k)
			return true
		})
	})
	if len(keys) <= l.retain {
		return
	}
	drop := keys[:len(keys)-l.retain]
	_ = l.db.Update(func(tx *buntdb.Tx) error {
		for _, k := range drop {
			if _, err := tx.Delete(k); err != nil && err != buntdb.ErrNotFound {
				return err
			}
		}
		return nil
	})
}

// Recent returns up to n most recent entries for client, newest first.
func (l *Log) Recent(client string, n int) ([]Entry, error) {
	var out []Entry
	prefix := "stream:" + client + ":"
	err := l.db.View(func(tx *buntdb.Tx) error {
		return tx.DescendKeys(prefix+"*", func(_, v string) bool {
			var e Entry
			if _, err := e.UnmarshalMsg([]byte(v)); err == nil {
				out = append(out, e)
			}
			return len(out) < n
		})
	})
	return out, err
}

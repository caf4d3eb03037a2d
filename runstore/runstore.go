// Package runstore keeps a history of completed consensus runs on disk.
// The driver writes each participant's final state after a run finishes;
// nothing in the protocol itself reads or depends on this data.
package runstore

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Arturo1s/benor"
	"github.com/Arturo1s/benor/logging"
)

// Record is one participant's final state in one run.
type Record struct {
	Run   string              `json:"run"`
	ID    benor.ID            `json:"id"`
	State benor.StateSnapshot `json:"state"`
}

// Store is a LevelDB-backed run history.
type Store struct {
	logger logging.Logger
	db     *leveldb.DB
}

// Open opens (or creates) the store at the given path.
func Open(path string, logger logging.Logger) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return &Store{logger: logger, db: db}, nil
}

// Put records one participant's final state for the given run.
func (s *Store) Put(run string, id benor.ID, state benor.StateSnapshot) error {
	value, err := json.Marshal(Record{Run: run, ID: id, State: state})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if err := s.db.Put(key(run, id), value, nil); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

// Get returns one participant's final state for the given run.
func (s *Store) Get(run string, id benor.ID) (Record, error) {
	value, err := s.db.Get(key(run, id), nil)
	if err != nil {
		return Record{}, fmt.Errorf("load record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return rec, nil
}

// List returns all records of the given run in key order.
func (s *Store) List(run string) ([]Record, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(run+"/")), nil)
	defer iter.Release()

	var records []Record
	for iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal record %q: %w", iter.Key(), err)
		}
		records = append(records, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterate run %q: %w", run, err)
	}
	return records, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(run string, id benor.ID) []byte {
	return []byte(fmt.Sprintf("%s/%08d", run, id))
}

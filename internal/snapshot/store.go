// internal/snapshot/store.go
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"changeview/shared/types"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("snapshot entry not found")

// Values below this size are stored uncompressed; zstd headers would only
// add overhead.
const compressFloor = 1024

const (
	changeListPrefix = "changelist:"
	trackedPrefix    = "tracked:"
	statusKey        = "status:last"
)

// Store persists changelists, the tracked-file index, and the last status
// snapshot, so the changes view can be restored across sessions without a
// full rescan.
type Store struct {
	db     *badger.DB
	logger *zap.Logger
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// New creates a store over an open badger database.
func New(db *badger.DB, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Store{db: db, logger: logger, enc: enc, dec: dec}, nil
}

// SaveChangeList stores a changelist, assigning an ID and creation time if
// missing, plus a time index for ordered listing.
func (s *Store) SaveChangeList(cl *shared.ChangeList) error {
	if cl.ID == "" {
		cl.ID = uuid.New().String()
	}
	if cl.Created.IsZero() {
		cl.Created = time.Now()
	}

	data, err := json.Marshal(cl)
	if err != nil {
		return fmt.Errorf("marshaling changelist: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(changeListPrefix + cl.ID)
		if err := txn.Set(key, s.pack(data)); err != nil {
			return fmt.Errorf("storing changelist: %w", err)
		}

		timeKey := []byte(fmt.Sprintf("cl_time:%d:%s", cl.Created.Unix(), cl.ID))
		if err := txn.Set(timeKey, nil); err != nil {
			return fmt.Errorf("storing time index: %w", err)
		}
		return nil
	})
}

// ChangeList retrieves one changelist by ID.
func (s *Store) ChangeList(id string) (*shared.ChangeList, error) {
	var cl shared.ChangeList
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(changeListPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data, err := s.unpack(val)
			if err != nil {
				return err
			}
			return json.Unmarshal(data, &cl)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: changelist %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("retrieving changelist: %w", err)
	}
	return &cl, nil
}

// ChangeLists returns every stored changelist.
func (s *Store) ChangeLists() ([]shared.ChangeList, error) {
	var lists []shared.ChangeList
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(changeListPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				data, err := s.unpack(val)
				if err != nil {
					return err
				}
				var cl shared.ChangeList
				if err := json.Unmarshal(data, &cl); err != nil {
					return err
				}
				lists = append(lists, cl)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing changelists: %w", err)
	}
	return lists, nil
}

// DeleteChangeList removes a changelist and its time index.
func (s *Store) DeleteChangeList(id string) error {
	cl, err := s.ChangeList(id)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(changeListPrefix + id)); err != nil {
			return err
		}
		timeKey := []byte(fmt.Sprintf("cl_time:%d:%s", cl.Created.Unix(), cl.ID))
		return txn.Delete(timeKey)
	})
}

// SaveStatus replaces the last status snapshot.
func (s *Store) SaveStatus(changes []shared.Change) error {
	data, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshaling status: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(statusKey), s.pack(data))
	})
}

// LastStatus returns the last saved status snapshot, or ErrNotFound if no
// snapshot was saved yet.
func (s *Store) LastStatus() ([]shared.Change, error) {
	var changes []shared.Change
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(statusKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data, err := s.unpack(val)
			if err != nil {
				return err
			}
			return json.Unmarshal(data, &changes)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("retrieving status: %w", err)
	}
	return changes, nil
}

// SaveTracked replaces the tracked-file index (relative path to content
// hash).
func (s *Store) SaveTracked(tracked map[string]string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(trackedPrefix)

		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for path, hash := range tracked {
			if err := txn.Set([]byte(trackedPrefix+path), []byte(hash)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tracked loads the tracked-file index. An empty map means nothing is
// tracked yet.
func (s *Store) Tracked() (map[string]string, error) {
	tracked := make(map[string]string)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(trackedPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			path := string(item.Key()[len(trackedPrefix):])
			err := item.Value(func(val []byte) error {
				tracked[path] = string(val)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading tracked index: %w", err)
	}
	return tracked, nil
}

// Close releases the compressor resources. The badger DB is owned by the
// caller.
func (s *Store) Close() {
	s.enc.Close()
	s.dec.Close()
}

// pack prepends a compression marker byte and zstd-compresses payloads
// above the floor.
func (s *Store) pack(data []byte) []byte {
	if len(data) < compressFloor {
		return append([]byte{0}, data...)
	}
	return s.enc.EncodeAll(data, []byte{1})
}

func (s *Store) unpack(val []byte) ([]byte, error) {
	if len(val) == 0 {
		return nil, fmt.Errorf("empty stored value")
	}
	if val[0] == 0 {
		return val[1:], nil
	}
	data, err := s.dec.DecodeAll(val[1:], nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing stored value: %w", err)
	}
	return data, nil
}

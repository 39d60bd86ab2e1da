package boltstore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/crystal-mush/arxscript/pkg/gamedb"
	"github.com/crystal-mush/arxscript/pkg/script"
)

// Store persists script save games in a bbolt database. A save replaces the
// previous one atomically.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}
	return &Store{bolt: db}, nil
}

var allBuckets = [][]byte{bucketMeta, bucketGlobals, bucketInstances, bucketTimers, bucketEntities}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Save writes the script state and the world entities in one transaction,
// replacing whatever was saved before.
func (s *Store) Save(st script.State, db *gamedb.Database) error {
	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		meta := tx.Bucket(bucketMeta)
		meta.Put(keyFormat, intToKey(formatVersion))
		meta.Put(keyClock, intToKey(st.Now))
		meta.Put(keyTimerSeq, intToKey(int64(st.TimerSeq)))
		meta.Put(keySavedAt, intToKey(time.Now().Unix()))

		b := tx.Bucket(bucketGlobals)
		for _, v := range st.Globals {
			data, err := encode(v)
			if err != nil {
				return fmt.Errorf("encode global %s: %w", v.Name, err)
			}
			if err := b.Put([]byte(v.Name), data); err != nil {
				return err
			}
		}

		b = tx.Bucket(bucketInstances)
		for _, is := range st.Instances {
			data, err := encode(is)
			if err != nil {
				return fmt.Errorf("encode instance %d: %w", is.Entity, err)
			}
			if err := b.Put(refToKey(is.Entity), data); err != nil {
				return err
			}
		}

		b = tx.Bucket(bucketTimers)
		for i, t := range st.Timers {
			data, err := encode(t)
			if err != nil {
				return fmt.Errorf("encode timer %s: %w", t.Name, err)
			}
			if err := b.Put(intToKey(int64(i)), data); err != nil {
				return err
			}
		}

		if db == nil {
			return nil
		}
		b = tx.Bucket(bucketEntities)
		for _, e := range db.Sorted() {
			data, err := encode(e)
			if err != nil {
				return fmt.Errorf("encode entity %s: %w", e.Name, err)
			}
			if err := b.Put(refToKey(e.Ref), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("boltstore: save: %w", err)
	}
	return nil
}

// Load reads the saved script state.
func (s *Store) Load() (script.State, error) {
	var st script.State
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if v := keyToInt(meta.Get(keyFormat)); v != formatVersion {
			return fmt.Errorf("unsupported save format %d", v)
		}
		st.Now = keyToInt(meta.Get(keyClock))
		st.TimerSeq = int(keyToInt(meta.Get(keyTimerSeq)))

		err := tx.Bucket(bucketGlobals).ForEach(func(k, v []byte) error {
			var vr script.Variable
			if err := decode(v, &vr); err != nil {
				return fmt.Errorf("decode global %s: %w", k, err)
			}
			st.Globals = append(st.Globals, vr)
			return nil
		})
		if err != nil {
			return err
		}

		err = tx.Bucket(bucketInstances).ForEach(func(k, v []byte) error {
			var is script.InstanceState
			if err := decode(v, &is); err != nil {
				return fmt.Errorf("decode instance %d: %w", keyToRef(k), err)
			}
			is.Entity = keyToRef(k)
			st.Instances = append(st.Instances, is)
			return nil
		})
		if err != nil {
			return err
		}

		return tx.Bucket(bucketTimers).ForEach(func(k, v []byte) error {
			var t script.Timer
			if err := decode(v, &t); err != nil {
				return fmt.Errorf("decode timer %d: %w", keyToInt(k), err)
			}
			st.Timers = append(st.Timers, t)
			return nil
		})
	})
	if err != nil {
		return script.State{}, fmt.Errorf("boltstore: load: %w", err)
	}
	return st, nil
}

// LoadEntities overlays the saved entities onto db. Saved entities replace
// the live ones with the same reference; entities missing from db are added.
func (s *Store) LoadEntities(db *gamedb.Database) (int, error) {
	count := 0
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntities).ForEach(func(k, v []byte) error {
			var e gamedb.Entity
			if err := decode(v, &e); err != nil {
				return fmt.Errorf("decode entity %d: %w", keyToRef(k), err)
			}
			e.Ref = keyToRef(k)
			if e.NPC != nil && e.NPC.Stats == nil {
				e.NPC.Stats = make(map[string]float64)
			}
			db.Remove(e.Ref)
			db.Add(&e)
			count++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("boltstore: load entities: %w", err)
	}
	log.Printf("boltstore: loaded %d entities", count)
	return count, nil
}

// SavedAt returns the time of the last save, or the zero time.
func (s *Store) SavedAt() time.Time {
	var at time.Time
	s.bolt.View(func(tx *bbolt.Tx) error {
		if v := keyToInt(tx.Bucket(bucketMeta).Get(keySavedAt)); v != 0 {
			at = time.Unix(v, 0)
		}
		return nil
	})
	return at
}

// HasData returns true if the bbolt database holds a save.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		hasData = tx.Bucket(bucketMeta).Get(keyFormat) != nil
		return nil
	})
	return hasData
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		if err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}

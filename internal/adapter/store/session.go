package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"qlmodel/internal/domain"
	"qlmodel/internal/port"
)

var (
	bucketSessions = []byte("sessions")
	bucketMeta     = []byte("meta")
	keySchema      = []byte("schema_version")
)

const schemaVersion = 1

// SessionStore persists in-progress modeling work per database, so an
// interrupted editing session resumes without losing edits. One nested
// bucket per database directory, one entry per API signature.
type SessionStore struct {
	db *bbolt.DB
}

var _ port.SessionStore = (*SessionStore)(nil)

// NewSessionStore opens (creating if needed) the session database at path.
func NewSessionStore(path string) (*SessionStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open session db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSessions, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return tx.Bucket(bucketMeta).Put(keySchema, []byte{schemaVersion})
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SessionStore{db: db}, nil
}

type modelEntry struct {
	Type       string `json:"type"`
	Input      string `json:"input,omitempty"`
	Output     string `json:"output,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Provenance string `json:"provenance,omitempty"`
}

// SaveModels replaces the stored session for a database with the given
// mapping.
func (s *SessionStore) SaveModels(databaseDir string, models map[string]domain.ModeledMethod) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		if sessions.Bucket([]byte(databaseDir)) != nil {
			if err := sessions.DeleteBucket([]byte(databaseDir)); err != nil {
				return err
			}
		}
		b, err := sessions.CreateBucket([]byte(databaseDir))
		if err != nil {
			return err
		}

		for signature, m := range models {
			entry := modelEntry{
				Type:       string(m.Type),
				Input:      m.Input,
				Output:     m.Output,
				Kind:       m.Kind,
				Provenance: m.Provenance,
			}
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(signature), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadModels returns the stored session for a database. A database with
// no stored session yields an empty mapping.
func (s *SessionStore) LoadModels(databaseDir string) (map[string]domain.ModeledMethod, error) {
	models := make(map[string]domain.ModeledMethod)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSessions).Bucket([]byte(databaseDir))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var entry modelEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				// Skip entries written by an incompatible version.
				return nil
			}
			m := domain.ModeledMethod{
				Type:       domain.ModeledMethodType(entry.Type),
				Input:      entry.Input,
				Output:     entry.Output,
				Kind:       entry.Kind,
				Provenance: entry.Provenance,
			}
			if !m.Type.Valid() {
				return nil
			}
			models[string(k)] = m
			return nil
		})
	})
	return models, err
}

// DeleteSession removes a database's stored session.
func (s *SessionStore) DeleteSession(databaseDir string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		sessions := tx.Bucket(bucketSessions)
		if sessions.Bucket([]byte(databaseDir)) == nil {
			return nil
		}
		return sessions.DeleteBucket([]byte(databaseDir))
	})
}

// ListSessions returns the database directories with stored sessions.
func (s *SessionStore) ListSessions() ([]string, error) {
	var dirs []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).ForEachBucket(func(k []byte) error {
			dirs = append(dirs, string(k))
			return nil
		})
	})
	return dirs, err
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

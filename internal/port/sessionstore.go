package port

import "qlmodel/internal/domain"

// SessionStore persists in-progress modeling work per database so an
// interrupted editing session can resume without losing edits.
type SessionStore interface {
	SaveModels(databaseDir string, models map[string]domain.ModeledMethod) error

	LoadModels(databaseDir string) (map[string]domain.ModeledMethod, error)

	DeleteSession(databaseDir string) error

	ListSessions() ([]string, error)

	Close() error
}

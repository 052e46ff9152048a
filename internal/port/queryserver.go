package port

import (
	"context"

	"qlmodel/internal/domain"
)

// QueryServer is the request/response surface of the external evaluation
// backend. One outstanding request per call; transport failures propagate
// as errors, compiler diagnostics do not.
type QueryServer interface {
	// Capabilities reports what the connected backend supports.
	Capabilities() domain.Capabilities

	// Compile sends a compile request and returns the full ordered
	// diagnostic list. Compile errors are returned in the list, not as an
	// error; only transport failures produce a non-nil error.
	Compile(ctx context.Context, req domain.CompileRequest, progress ProgressSink) ([]domain.CompileMessage, error)

	// Run evaluates a compiled query, writing raw results to the request's
	// output path.
	Run(ctx context.Context, req domain.RunRequest, progress ProgressSink) error

	// RegisterDatabase registers a database with the backend. A no-op when
	// the backend does not support registration.
	RegisterDatabase(ctx context.Context, db domain.DatabaseItem) error

	// DeregisterDatabase removes a previously registered database. A no-op
	// when unsupported or when the database was never registered in this
	// session.
	DeregisterDatabase(ctx context.Context, db domain.DatabaseItem) error
}

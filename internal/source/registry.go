package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/harvester-hq/harvester/internal/metrics"
)

// uniqueViolation is the Postgres SQLSTATE raised when an insert loses a
// race on the sources.foreign_id unique constraint.
const uniqueViolation = "23505"

// DB is the slice of pgxpool.Pool the registry needs. Narrowing the
// dependency lets pgxmock stand in during tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// TokenSource generates foreign IDs when the caller does not supply one.
type TokenSource interface {
	NewToken() (string, error)
}

// Registry creates, looks up, and deletes Source rows. It is the sole
// owner of the source lifecycle; all mutations run inside explicit
// transactions or single statements so concurrent readers never observe
// partially deleted state.
type Registry struct {
	db     DB
	tokens TokenSource
	logger *zap.Logger
	now    func() time.Time
}

// NewRegistry constructs a Registry over the given database handle.
// It assumes a schema like:
//
//	CREATE TABLE sources (
//		id BIGSERIAL PRIMARY KEY,
//		foreign_id TEXT NOT NULL UNIQUE,
//		label TEXT,
//		created_at TIMESTAMPTZ NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE TABLE documents (
//		id BIGSERIAL PRIMARY KEY,
//		source_id BIGINT NOT NULL REFERENCES sources (id)
//		-- content columns owned by the ingestion pipeline
//	);
//	CREATE TABLE pages (
//		id BIGSERIAL PRIMARY KEY,
//		document_id BIGINT NOT NULL REFERENCES documents (id)
//	);
//	CREATE TABLE document_references (
//		id BIGSERIAL PRIMARY KEY,
//		document_id BIGINT NOT NULL REFERENCES documents (id)
//	);
//
// TODO: manage the schema with golang-migrate instead of assuming it.
func NewRegistry(db DB, tokens TokenSource, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		db:     db,
		tokens: tokens,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the registry clock. Intended for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

const sourceColumns = `id, foreign_id, label, created_at, updated_at`

func scanSource(row pgx.Row) (Source, error) {
	var (
		src   Source
		label *string
	)
	if err := row.Scan(&src.ID, &src.ForeignID, &label, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return Source{}, err
	}
	if label != nil {
		src.Label = *label
	}
	return src, nil
}

// CreateOrGet is an idempotent upsert keyed on foreign ID. If a source
// with the input's foreign ID already exists, its label is updated in
// place and the existing row is returned; no duplicate is created. If
// the foreign ID is absent a random token is generated. A concurrent
// creator racing on the same foreign ID loses to the unique constraint,
// in which case the lookup is retried once instead of surfacing the
// constraint violation to the caller.
func (r *Registry) CreateOrGet(ctx context.Context, in CreateInput) (Source, error) {
	if err := in.Validate(); err != nil {
		return Source{}, err
	}

	if in.ForeignID != "" {
		if src, found, err := r.ByForeignID(ctx, in.ForeignID); err != nil {
			return Source{}, err
		} else if found {
			return r.updateLabel(ctx, src, in.Label)
		}
	}

	foreignID := in.ForeignID
	if foreignID == "" {
		tok, err := r.tokens.NewToken()
		if err != nil {
			return Source{}, fmt.Errorf("generate foreign id: %w", err)
		}
		foreignID = tok
	}

	src, err := r.insert(ctx, foreignID, in.Label)
	if err == nil {
		metrics.ObserveSourceCreated()
		r.logger.Info("source created",
			zap.Int64("source_id", src.ID),
			zap.String("foreign_id", src.ForeignID),
		)
		return src, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return Source{}, fmt.Errorf("insert source: %w", err)
	}

	// Lost a creation race (or a generated token collided). The winning
	// row must exist now; fetch it and apply the label update.
	src, found, err := r.ByForeignID(ctx, foreignID)
	if err != nil {
		return Source{}, err
	}
	if !found {
		return Source{}, fmt.Errorf("source %q vanished after unique violation", foreignID)
	}
	return r.updateLabel(ctx, src, in.Label)
}

func (r *Registry) insert(ctx context.Context, foreignID, label string) (Source, error) {
	now := r.now()
	row := r.db.QueryRow(ctx, `
		INSERT INTO sources (foreign_id, label, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		RETURNING id`,
		foreignID, nullable(label), now,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return Source{}, err
	}
	return Source{
		ID:        id,
		ForeignID: foreignID,
		Label:     label,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *Registry) updateLabel(ctx context.Context, src Source, label string) (Source, error) {
	now := r.now()
	if _, err := r.db.Exec(ctx, `
		UPDATE sources SET label = $1, updated_at = $2 WHERE id = $3`,
		nullable(label), now, src.ID,
	); err != nil {
		return Source{}, fmt.Errorf("update source %d: %w", src.ID, err)
	}
	src.Label = label
	src.UpdatedAt = now
	return src, nil
}

// ByID fetches a source by primary key. A missing row is a normal
// outcome, reported through the boolean rather than an error.
func (r *Registry) ByID(ctx context.Context, id int64) (Source, bool, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)
	src, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Source{}, false, nil
	}
	if err != nil {
		return Source{}, false, fmt.Errorf("select source %d: %w", id, err)
	}
	return src, true, nil
}

// ByForeignID fetches a source by its foreign ID. An empty foreign ID
// short-circuits to not-found without touching storage.
func (r *Registry) ByForeignID(ctx context.Context, foreignID string) (Source, bool, error) {
	if foreignID == "" {
		return Source{}, false, nil
	}
	row := r.db.QueryRow(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE foreign_id = $1`, foreignID)
	src, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Source{}, false, nil
	}
	if err != nil {
		return Source{}, false, fmt.Errorf("select source %q: %w", foreignID, err)
	}
	return src, true, nil
}

// All returns every source, optionally filtered to the given ids. Row
// order is unspecified; callers must not depend on it.
func (r *Registry) All(ctx context.Context, ids ...int64) ([]Source, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(ids) == 0 {
		rows, err = r.db.Query(ctx, `SELECT `+sourceColumns+` FROM sources`)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+sourceColumns+` FROM sources WHERE id = ANY($1)`, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("select sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// AllLabels returns an id-to-label projection for display purposes,
// optionally filtered to the given ids.
func (r *Registry) AllLabels(ctx context.Context, ids ...int64) (map[int64]string, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(ids) == 0 {
		rows, err = r.db.Query(ctx, `SELECT id, label FROM sources`)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, label FROM sources WHERE id = ANY($1)`, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("select source labels: %w", err)
	}
	defer rows.Close()

	labels := make(map[int64]string)
	for rows.Next() {
		var (
			id    int64
			label *string
		)
		if err := rows.Scan(&id, &label); err != nil {
			return nil, fmt.Errorf("scan source label: %w", err)
		}
		if label != nil {
			labels[id] = *label
		} else {
			labels[id] = ""
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source labels: %w", err)
	}
	return labels, nil
}

// Delete removes a source together with all of its dependent documents,
// pages, and references in a single transaction. The dependents are
// removed bulk-first so no statement ever leaves a child row pointing at
// a deleted parent, and the whole operation commits or rolls back as
// one: a failure at any step aborts the transaction and surfaces a
// *DeleteError with storage untouched. Round trips stay O(1) per table
// regardless of document count.
func (r *Registry) Delete(ctx context.Context, src Source) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &DeleteError{SourceID: src.ID, Err: fmt.Errorf("begin: %w", err)}
	}
	// Rollback after a successful commit is a no-op.
	defer tx.Rollback(ctx) //nolint:errcheck

	statements := []string{
		`DELETE FROM pages WHERE document_id IN
			(SELECT id FROM documents WHERE source_id = $1)`,
		`DELETE FROM document_references WHERE document_id IN
			(SELECT id FROM documents WHERE source_id = $1)`,
		`DELETE FROM documents WHERE source_id = $1`,
		`DELETE FROM sources WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, src.ID); err != nil {
			return &DeleteError{SourceID: src.ID, Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &DeleteError{SourceID: src.ID, Err: fmt.Errorf("commit: %w", err)}
	}
	metrics.ObserveSourceDeleted()
	r.logger.Info("source deleted",
		zap.Int64("source_id", src.ID),
		zap.String("foreign_id", src.ForeignID),
	)
	return nil
}

// nullable maps "" to NULL so optional text columns stay NULL rather
// than empty strings.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the slice of pgxpool.Pool the store needs. Satisfied by
// *pgxpool.Pool; tests substitute fakes.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier is the statement surface shared by DB and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	pgCodeUniqueViolation = "23505"
	pgCodeNotSupported    = "0A000"
)

const refreshColumns = `id, token_hash, user_id, family_id, issued_at, expires_at, last_used_at, revoked, replaced_by, ip_address, user_agent, fingerprint`

const consumeUpdateSQL = `
UPDATE refresh_tokens
SET revoked = TRUE, last_used_at = $2, replaced_by = $3
WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2
RETURNING ` + refreshColumns

const insertRecordSQL = `
INSERT INTO refresh_tokens (` + refreshColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const unconsumeSQL = `
UPDATE refresh_tokens
SET revoked = FALSE, last_used_at = $2, replaced_by = NULL
WHERE id = $1`

// PostgresStore persists refresh token records in a refresh_tokens table.
// Consume runs inside a transaction; against pools that reject Begin with
// SQLSTATE 0A000 it degrades to a compare-and-swap protocol with a
// compensating repair step.
type PostgresStore struct {
	db          DB
	retention   time.Duration
	logger      *slog.Logger
	degradedFn  func()
	loggedDegra bool
}

// NewPostgresStore wraps db. retention is how long PurgeExpired keeps dead
// records queryable past expiry; a nil logger falls back to slog.Default.
func NewPostgresStore(db DB, retention time.Duration, logger *slog.Logger) *PostgresStore {
	if retention < 0 {
		retention = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, retention: retention, logger: logger}
}

// SetDegradedHook registers a callback fired each time Consume falls back to
// the non-transactional path. Used for metrics wiring.
func (s *PostgresStore) SetDegradedHook(fn func()) {
	s.degradedFn = fn
}

// Insert stores rec. A unique violation on the token hash maps to
// ErrHashExists.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	return s.insertRecord(ctx, s.db, rec)
}

// Consume atomically rotates the record identified by tokenHash into
// successor. See the Store interface for the contract.
func (s *PostgresStore) Consume(ctx context.Context, tokenHash [32]byte, successor Record, now time.Time) (*Record, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		if isPgCode(err, pgCodeNotSupported) {
			return s.consumeNonTx(ctx, tokenHash, successor, now)
		}
		return nil, fmt.Errorf("%w: begin: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	old, err := s.consumeUpdate(ctx, tx, tokenHash, successor.ID, now)
	if err != nil {
		return old, err
	}
	fillFromConsumed(&successor, old)

	if err := s.insertRecord(ctx, tx, successor); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}
	return old, nil
}

// consumeNonTx is the degraded path. The revoke update is itself an atomic
// compare-and-swap, so the single-winner property holds; what is lost is
// atomicity with the successor insert, repaired by un-revoking the consumed
// record if the insert fails.
func (s *PostgresStore) consumeNonTx(ctx context.Context, tokenHash [32]byte, successor Record, now time.Time) (*Record, error) {
	if !s.loggedDegra {
		s.logger.Warn("refresh store: transactions unsupported, using compare-and-swap fallback")
		s.loggedDegra = true
	}
	if s.degradedFn != nil {
		s.degradedFn()
	}

	old, err := s.consumeUpdate(ctx, s.db, tokenHash, successor.ID, now)
	if err != nil {
		return old, err
	}
	fillFromConsumed(&successor, old)

	if err := s.insertRecord(ctx, s.db, successor); err != nil {
		if _, repairErr := s.db.Exec(ctx, unconsumeSQL, old.ID, nullTime(old.LastUsedAt)); repairErr != nil {
			s.logger.Error("refresh store: rotation repair failed, record left revoked",
				"token_id", old.ID, "error", repairErr)
			return nil, fmt.Errorf("%w: rotation repair failed: %v", ErrStoreUnavailable, repairErr)
		}
		return nil, err
	}
	return old, nil
}

// consumeUpdate performs the guarded revoke-and-link update and classifies a
// miss as dead or missing via a follow-up probe.
func (s *PostgresStore) consumeUpdate(ctx context.Context, q querier, tokenHash [32]byte, successorID string, now time.Time) (*Record, error) {
	rec, err := scanRecord(q.QueryRow(ctx, consumeUpdateSQL, tokenHash[:], now, successorID))
	if err == nil {
		// RETURNING reflects the post-update row; report the pre-update state.
		consumed := *rec
		consumed.Revoked = false
		consumed.ReplacedBy = ""
		return &consumed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: consume: %v", ErrStoreUnavailable, err)
	}

	probe, err := scanRecord(q.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash[:]))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: consume probe: %v", ErrStoreUnavailable, err)
	}
	return probe, ErrTokenDead
}

func (s *PostgresStore) insertRecord(ctx context.Context, q querier, rec Record) error {
	_, err := q.Exec(ctx, insertRecordSQL,
		rec.ID,
		rec.TokenHash[:],
		rec.UserID,
		rec.FamilyID,
		rec.IssuedAt,
		rec.ExpiresAt,
		nullTime(rec.LastUsedAt),
		rec.Revoked,
		nullString(rec.ReplacedBy),
		rec.IPAddress,
		rec.UserAgent,
		rec.Fingerprint,
	)
	if err != nil {
		if isPgCode(err, pgCodeUniqueViolation) {
			return ErrHashExists
		}
		return fmt.Errorf("%w: insert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Revoke marks records matching sel as revoked and returns how many rows
// changed. Already revoked records are untouched.
func (s *PostgresStore) Revoke(ctx context.Context, sel Selector, now time.Time) (int, error) {
	if !sel.valid() {
		return 0, fmt.Errorf("%w: selector must set exactly one field", ErrStoreUnavailable)
	}

	var (
		where string
		arg   string
	)
	switch {
	case sel.TokenID != "":
		where, arg = "id", sel.TokenID
	case sel.FamilyID != "":
		where, arg = "family_id", sel.FamilyID
	default:
		where, arg = "user_id", sel.UserID
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE WHERE `+where+` = $1 AND revoked = FALSE`, arg)
	if err != nil {
		return 0, fmt.Errorf("%w: revoke: %v", ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

// ListByUser returns every retained record for userID, dead ones included.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE user_id = $1 ORDER BY issued_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: list scan: %v", ErrStoreUnavailable, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list rows: %v", ErrStoreUnavailable, err)
	}
	return records, nil
}

// GetByID returns the record with the given token ID, or (nil, nil) when
// unknown.
func (s *PostgresStore) GetByID(ctx context.Context, tokenID string) (*Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+refreshColumns+` FROM refresh_tokens WHERE id = $1`, tokenID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// Ping verifies backend connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// PurgeExpired deletes records whose retention window has passed. Redis
// handles this with key TTLs; Postgres deployments call this from a periodic
// job.
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.retention)
	tag, err := s.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: purge: %v", ErrStoreUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec        Record
		hash       []byte
		lastUsed   *time.Time
		replacedBy *string
	)
	err := row.Scan(
		&rec.ID,
		&hash,
		&rec.UserID,
		&rec.FamilyID,
		&rec.IssuedAt,
		&rec.ExpiresAt,
		&lastUsed,
		&rec.Revoked,
		&replacedBy,
		&rec.IPAddress,
		&rec.UserAgent,
		&rec.Fingerprint,
	)
	if err != nil {
		return nil, err
	}
	if len(hash) != len(rec.TokenHash) {
		return nil, fmt.Errorf("token hash has %d bytes", len(hash))
	}
	copy(rec.TokenHash[:], hash)
	if lastUsed != nil {
		rec.LastUsedAt = *lastUsed
	}
	if replacedBy != nil {
		rec.ReplacedBy = *replacedBy
	}
	return &rec, nil
}

func fillFromConsumed(successor *Record, old *Record) {
	if successor.UserID == "" {
		successor.UserID = old.UserID
	}
	if successor.FamilyID == "" {
		successor.FamilyID = old.FamilyID
	}
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

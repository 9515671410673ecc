package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"estateclaims/internal/claims/models"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/sentinel"
	"estateclaims/pkg/platform/tx"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, claimant_id, deceased_name, deceased_id_number, relationship,
	consent_given, consent_at, status, assigned_reviewer, notes, created_at, updated_at, version`

func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO claim_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(session.ID),
		uuid.UUID(session.ClaimantID),
		session.DeceasedName,
		nullString(session.DeceasedIDNumber),
		session.Relationship,
		session.ConsentGiven,
		session.ConsentAt,
		string(session.Status),
		nullUUID(session.AssignedReviewer),
		session.Notes,
		session.CreatedAt,
		session.UpdatedAt,
		session.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert claim session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.find(ctx, sessionID, "")
}

// FindForUpdate reads the session and holds its row lock until the
// transaction in ctx ends.
func (s *PostgresStore) FindForUpdate(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.find(ctx, sessionID, " FOR UPDATE")
}

func (s *PostgresStore) find(ctx context.Context, sessionID id.SessionID, suffix string) (*models.Session, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM claim_sessions WHERE id = $1`+suffix,
		uuid.UUID(sessionID),
	)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find claim session: %w", err)
	}
	return session, nil
}

// Update writes the mutable fields when the stored version still matches.
func (s *PostgresStore) Update(ctx context.Context, session *models.Session) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE claim_sessions
		SET consent_given = $1, consent_at = $2, status = $3, assigned_reviewer = $4,
		    notes = $5, updated_at = $6, version = version + 1
		WHERE id = $7 AND version = $8
	`,
		session.ConsentGiven,
		session.ConsentAt,
		string(session.Status),
		nullUUID(session.AssignedReviewer),
		session.Notes,
		session.UpdatedAt,
		uuid.UUID(session.ID),
		session.Version,
	)
	if err != nil {
		return fmt.Errorf("update claim session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim session: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByID(ctx, session.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleWrite
	}
	session.Version++
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*models.Session, error) {
	var (
		where []string
		args  []any
	)
	if !filter.ClaimantID.IsNil() {
		args = append(args, uuid.UUID(filter.ClaimantID))
		where = append(where, fmt.Sprintf("claimant_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + sessionColumns + ` FROM claim_sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claim sessions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim session: %w", err)
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		session          models.Session
		sessionID        uuid.UUID
		claimant         uuid.UUID
		deceasedIDNumber sql.NullString
		consentAt        sql.NullTime
		status           string
		reviewer         uuid.NullUUID
	)
	err := row.Scan(
		&sessionID, &claimant, &session.DeceasedName, &deceasedIDNumber, &session.Relationship,
		&session.ConsentGiven, &consentAt, &status, &reviewer, &session.Notes,
		&session.CreatedAt, &session.UpdatedAt, &session.Version,
	)
	if err != nil {
		return nil, err
	}
	session.ID = id.SessionID(sessionID)
	session.ClaimantID = id.UserID(claimant)
	session.DeceasedIDNumber = deceasedIDNumber.String
	session.Status = models.Status(status)
	if consentAt.Valid {
		t := consentAt.Time.UTC()
		session.ConsentAt = &t
	}
	if reviewer.Valid {
		r := id.UserID(reviewer.UUID)
		session.AssignedReviewer = &r
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	return &session, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullUUID(v *id.UserID) uuid.NullUUID {
	if v == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*v), Valid: true}
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"estateclaims/internal/assets/models"
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

const assetColumns = `id, session_id, source_ref, institution_name, asset_type, account_number,
	estimated_value, currency, details, discovered_at`

const claimColumns = `id, asset_id, claimant_id, status, claimed_at, receipt_locator,
	processed_at, processing_notes, version`

// CreateAsset relies on the (session_id, source_ref) unique key so repeated
// discovery runs insert nothing.
func (s *PostgresStore) CreateAsset(ctx context.Context, asset *models.Asset) (bool, error) {
	details, err := json.Marshal(asset.Details)
	if err != nil {
		return false, fmt.Errorf("encode asset details: %w", err)
	}
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id, source_ref) DO NOTHING
	`,
		uuid.UUID(asset.ID),
		uuid.UUID(asset.SessionID),
		asset.SourceRef,
		asset.InstitutionName,
		string(asset.Type),
		nullString(asset.AccountNumber),
		asset.EstimatedValue,
		asset.Currency,
		details,
		asset.DiscoveredAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert asset: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert asset: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) FindAsset(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1`,
		uuid.UUID(assetID),
	)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find asset: %w", err)
	}
	return asset, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context, sessionID id.SessionID) ([]*models.Asset, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE session_id = $1 ORDER BY discovered_at DESC, source_ref ASC`,
		uuid.UUID(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, asset)
	}
	return out, rows.Err()
}

// CountAssets counts the assets discovered across the given sessions.
func (s *PostgresStore) CountAssets(ctx context.Context, sessionIDs []id.SessionID) (int, error) {
	if len(sessionIDs) == 0 {
		return 0, nil
	}
	raw := make([]string, len(sessionIDs))
	for i, sid := range sessionIDs {
		raw[i] = sid.String()
	}
	var n int
	err := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM assets WHERE session_id = ANY($1::uuid[])`,
		pq.Array(raw),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateClaim(ctx context.Context, claim *models.AssetClaim) error {
	_, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO asset_claims (`+claimColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		uuid.UUID(claim.ID),
		uuid.UUID(claim.AssetID),
		uuid.UUID(claim.ClaimantID),
		string(claim.Status),
		claim.ClaimedAt,
		nullString(claim.ReceiptLocator),
		claim.ProcessedAt,
		claim.ProcessingNotes,
		claim.Version,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("insert asset claim: %w", sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return fmt.Errorf("insert asset claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindClaim(ctx context.Context, claimID id.AssetClaimID) (*models.AssetClaim, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM asset_claims WHERE id = $1`,
		uuid.UUID(claimID),
	)
	claim, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find asset claim: %w", err)
	}
	return claim, nil
}

// UpdateClaim writes the mutable columns when the stored version still matches.
func (s *PostgresStore) UpdateClaim(ctx context.Context, claim *models.AssetClaim) error {
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE asset_claims
		SET status = $1, receipt_locator = $2, processed_at = $3, processing_notes = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`,
		string(claim.Status),
		nullString(claim.ReceiptLocator),
		claim.ProcessedAt,
		claim.ProcessingNotes,
		uuid.UUID(claim.ID),
		claim.Version,
	)
	if err != nil {
		return fmt.Errorf("update asset claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update asset claim: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindClaim(ctx, claim.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleWrite
	}
	claim.Version++
	return nil
}

func (s *PostgresStore) ListClaims(ctx context.Context, filter ClaimFilter) ([]*models.AssetClaim, error) {
	var (
		where []string
		args  []any
	)
	if !filter.ClaimantID.IsNil() {
		args = append(args, uuid.UUID(filter.ClaimantID))
		where = append(where, fmt.Sprintf("claimant_id = $%d", len(args)))
	}
	if !filter.AssetID.IsNil() {
		args = append(args, uuid.UUID(filter.AssetID))
		where = append(where, fmt.Sprintf("asset_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `SELECT ` + claimColumns + ` FROM asset_claims`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY claimed_at DESC`

	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list asset claims: %w", err)
	}
	defer rows.Close()
	out := make([]*models.AssetClaim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset claim: %w", err)
		}
		out = append(out, claim)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (*models.Asset, error) {
	var (
		a         models.Asset
		assetID   uuid.UUID
		sessionID uuid.UUID
		assetType string
		account   sql.NullString
		details   []byte
	)
	err := row.Scan(&assetID, &sessionID, &a.SourceRef, &a.InstitutionName, &assetType, &account,
		&a.EstimatedValue, &a.Currency, &details, &a.DiscoveredAt)
	if err != nil {
		return nil, err
	}
	a.ID = id.AssetID(assetID)
	a.SessionID = id.SessionID(sessionID)
	a.Type = models.AssetType(assetType)
	a.AccountNumber = account.String
	a.DiscoveredAt = a.DiscoveredAt.UTC()
	a.Details = map[string]any{}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return nil, fmt.Errorf("decode asset details: %w", err)
		}
	}
	return &a, nil
}

func scanClaim(row scanner) (*models.AssetClaim, error) {
	var (
		c         models.AssetClaim
		claimID   uuid.UUID
		assetID   uuid.UUID
		claimant  uuid.UUID
		status    string
		receipt   sql.NullString
		processed sql.NullTime
	)
	err := row.Scan(&claimID, &assetID, &claimant, &status, &c.ClaimedAt, &receipt,
		&processed, &c.ProcessingNotes, &c.Version)
	if err != nil {
		return nil, err
	}
	c.ID = id.AssetClaimID(claimID)
	c.AssetID = id.AssetID(assetID)
	c.ClaimantID = id.UserID(claimant)
	c.Status = models.ClaimStatus(status)
	c.ReceiptLocator = receipt.String
	c.ClaimedAt = c.ClaimedAt.UTC()
	if processed.Valid {
		t := processed.Time.UTC()
		c.ProcessedAt = &t
	}
	return &c, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"estateclaims/internal/audit"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Each entry is written to audit_log for querying and to outbox for the
// Kafka relay, both through the transaction carried in ctx.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	exec := tx.Executor(ctx, s.db)

	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("marshal audit detail: %w", err)
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_log (
			id, actor_id, action, entity_type, entity_id, details,
			request_id, ip_address, user_agent, device, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		entry.ID,
		uuid.UUID(entry.ActorID),
		string(entry.Action),
		entry.EntityType,
		entry.EntityID,
		detail,
		nullString(entry.Request.RequestID),
		nullString(entry.Request.IPAddress),
		nullString(entry.Request.UserAgent),
		nullString(entry.Request.Device),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		entry.EntityType,
		entry.EntityID,
		string(entry.Action),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

const entryColumns = `id, actor_id, action, entity_type, entity_id, details,
	request_id, ip_address, user_agent, device, created_at`

func (s *Store) ListByEntity(ctx context.Context, entityType, entityID string) ([]audit.Entry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, seq
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	return scanEntries(rows)
}

// ListRecent returns the newest entries across every entity.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM audit_log
		ORDER BY created_at DESC, seq DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent audit entries: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]audit.Entry, error) {
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e                             audit.Entry
			actor                         uuid.UUID
			action                        string
			detail                        []byte
			requestID, ip, userAgent, dev sql.NullString
		)
		if err := rows.Scan(&e.ID, &actor, &action, &e.EntityType, &e.EntityID, &detail,
			&requestID, &ip, &userAgent, &dev, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ActorID = id.UserID(actor)
		e.Action = audit.Action(action)
		if len(detail) > 0 && string(detail) != "null" {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		e.Request = audit.RequestMetadata{
			RequestID: requestID.String,
			IPAddress: ip.String,
			UserAgent: userAgent.String,
			Device:    dev.String,
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

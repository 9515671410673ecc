package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"estateclaims/internal/documents/models"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/sentinel"
	"estateclaims/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const documentColumns = `id, session_id, doc_type, file_name, mime_type, size_bytes, storage_locator,
	status, ocr_result, ocr_at, verified_by, verified_at, rejection_reason, uploaded_at, version`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	ocr, err := marshalOCR(doc.OCR)
	if err != nil {
		return err
	}
	_, err = tx.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.SessionID),
		string(doc.Type),
		doc.File.Name,
		doc.File.MIMEType,
		doc.File.Size,
		doc.StorageLocator,
		string(doc.Status),
		ocr,
		doc.OCRAt,
		nullUUID(doc.VerifiedBy),
		doc.VerifiedAt,
		nullString(doc.RejectionReason),
		doc.UploadedAt,
		doc.Version,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	row := tx.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		uuid.UUID(docID),
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find document: %w", err)
	}
	return doc, nil
}

// Update writes the verification fields when the stored version still matches.
func (s *PostgresStore) Update(ctx context.Context, doc *models.Document) error {
	ocr, err := marshalOCR(doc.OCR)
	if err != nil {
		return err
	}
	res, err := tx.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE documents
		SET status = $1, ocr_result = $2, ocr_at = $3, verified_by = $4, verified_at = $5,
		    rejection_reason = $6, version = version + 1
		WHERE id = $7 AND version = $8
	`,
		string(doc.Status),
		ocr,
		doc.OCRAt,
		nullUUID(doc.VerifiedBy),
		doc.VerifiedAt,
		nullString(doc.RejectionReason),
		uuid.UUID(doc.ID),
		doc.Version,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindByID(ctx, doc.ID); errors.Is(err, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleWrite
	}
	doc.Version++
	return nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.Document, error) {
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE session_id = $1 ORDER BY uploaded_at ASC`,
		uuid.UUID(sessionID),
	)
	if err != nil {
		return nil, fmt.Errorf("list session documents: %w", err)
	}
	return collect(rows)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Document, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := tx.Executor(ctx, s.db).QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE status = ANY($1) ORDER BY uploaded_at DESC`,
		pq.Array(names),
	)
	if err != nil {
		return nil, fmt.Errorf("list documents by status: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]*models.Document, error) {
	defer rows.Close()
	out := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc        models.Document
		docID      uuid.UUID
		sessionID  uuid.UUID
		docType    string
		status     string
		ocr        []byte
		ocrAt      sql.NullTime
		verifiedBy uuid.NullUUID
		verifiedAt sql.NullTime
		reason     sql.NullString
	)
	err := row.Scan(
		&docID, &sessionID, &docType, &doc.File.Name, &doc.File.MIMEType, &doc.File.Size, &doc.StorageLocator,
		&status, &ocr, &ocrAt, &verifiedBy, &verifiedAt, &reason, &doc.UploadedAt, &doc.Version,
	)
	if err != nil {
		return nil, err
	}
	doc.ID = id.DocumentID(docID)
	doc.SessionID = id.SessionID(sessionID)
	doc.Type = models.DocType(docType)
	doc.Status = models.Status(status)
	doc.RejectionReason = reason.String
	doc.UploadedAt = doc.UploadedAt.UTC()
	if len(ocr) > 0 {
		var result models.OCRResult
		if err := json.Unmarshal(ocr, &result); err != nil {
			return nil, fmt.Errorf("decode ocr result: %w", err)
		}
		doc.OCR = &result
	}
	if ocrAt.Valid {
		t := ocrAt.Time.UTC()
		doc.OCRAt = &t
	}
	if verifiedBy.Valid {
		v := id.UserID(verifiedBy.UUID)
		doc.VerifiedBy = &v
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time.UTC()
		doc.VerifiedAt = &t
	}
	return &doc, nil
}

func marshalOCR(r *models.OCRResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode ocr result: %w", err)
	}
	return b, nil
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

// Package blob stores uploaded evidence and receipts. Callers keep only the
// returned locator.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	id "estateclaims/pkg/domain"
)

// Store is the blob collaborator. Put returns once the object is durable.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
}

// DocumentKey is <claimant>/<session>/<docType>_<unixmillis>_<file>.
func DocumentKey(claimant id.UserID, session id.SessionID, docType string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%s/%s_%d_%s", claimant, session, docType, at.UnixMilli(), SanitizeFileName(fileName))
}

// ReceiptKey is <claimant>/receipts/<claim>_<file>.
func ReceiptKey(claimant id.UserID, claim id.AssetClaimID, fileName string) string {
	return fmt.Sprintf("%s/receipts/%s_%s", claimant, claim, SanitizeFileName(fileName))
}

// SanitizeFileName keeps the base name and replaces characters that are
// awkward in object keys.
func SanitizeFileName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}

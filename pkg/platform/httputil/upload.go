package httputil

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	dErrors "estateclaims/pkg/domain-errors"
)

// multipart overhead allowed on top of the file itself
const formOverhead = 1 << 20

// Upload is one file read from a multipart form.
type Upload struct {
	Name        string
	ContentType string
	Content     []byte
}

// ReadMultipartFile parses a multipart body and reads the named file part,
// refusing bodies larger than maxSize plus form overhead. Other form values
// are available through r.FormValue afterwards.
func ReadMultipartFile(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (*Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)
	if err := r.ParseMultipartForm(formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("file exceeds the %d MB limit", maxSize/(1024*1024)))
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid multipart form")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "failed to read "+field)
	}
	return &Upload{
		Name:        header.Filename,
		ContentType: SniffContentType(header.Header.Get("Content-Type"), content),
		Content:     content,
	}, nil
}

// SniffContentType trusts the declared type unless it is missing or generic.
func SniffContentType(declared string, content []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
			return mediaType
		}
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(content))
	return sniffed
}

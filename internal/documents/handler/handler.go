package handler

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"estateclaims/internal/documents/models"
	"estateclaims/internal/documents/service"
	id "estateclaims/pkg/domain"
	"estateclaims/pkg/platform/httputil"
	"estateclaims/pkg/requestcontext"
)

// Service defines the document operations exposed over HTTP. Reviewer
// decisions go through the review coordinator, not this handler.
type Service interface {
	Upload(ctx context.Context, caller id.Caller, req service.UploadRequest) (*models.Document, error)
	RunOCR(ctx context.Context, caller id.Caller, docID id.DocumentID) (*models.Document, error)
	Get(ctx context.Context, caller id.Caller, docID id.DocumentID) (*models.Document, error)
	Download(ctx context.Context, caller id.Caller, docID id.DocumentID) (*models.Document, []byte, error)
	ListForSession(ctx context.Context, caller id.Caller, sessionID id.SessionID) ([]*models.Document, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts document endpoints on an authenticated router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Get("/catalog", h.HandleCatalog)
		r.Post("/", h.HandleUpload)
		r.Get("/", h.HandleList)
		r.Get("/{documentID}", h.HandleGet)
		r.Get("/{documentID}/content", h.HandleDownload)
		r.Post("/{documentID}/ocr", h.HandleRunOCR)
	})
}

// HandleCatalog handles GET /documents/catalog.
func (h *Handler) HandleCatalog(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"catalog": models.Catalog()})
}

// HandleUpload handles POST /documents as multipart/form-data with fields
// session_id, document_type and file.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}

	upload, err := httputil.ReadMultipartFile(w, r, "file", models.MaxFileSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sessionID, err := id.ParseSessionID(r.FormValue("session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docType, err := models.ParseDocType(r.FormValue("document_type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.service.Upload(ctx, caller, service.UploadRequest{
		SessionID: sessionID,
		DocType:   docType,
		File: models.FileMeta{
			Name:     upload.Name,
			MIMEType: upload.ContentType,
			Size:     int64(len(upload.Content)),
		},
		Content: upload.Content,
	})
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "document upload failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

// HandleList handles GET /documents?session_id=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := httputil.RequireCaller(w, ctx)
	if !ok {
		return
	}
	sessionID, err := id.ParseSessionID(r.URL.Query().Get("session_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	docs, err := h.service.ListForSession(ctx, caller, sessionID)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "list documents failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// HandleGet handles GET /documents/{documentID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, docID, ok := h.callerAndDocument(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(ctx, caller, docID)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "get document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

// HandleDownload handles GET /documents/{documentID}/content.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, docID, ok := h.callerAndDocument(w, r)
	if !ok {
		return
	}
	doc, content, err := h.service.Download(ctx, caller, docID)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "download document failed", err)
		return
	}
	w.Header().Set("Content-Type", doc.File.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.File.Name}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		h.logger.WarnContext(ctx, "failed to write document content",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

// HandleRunOCR handles POST /documents/{documentID}/ocr.
func (h *Handler) HandleRunOCR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, docID, ok := h.callerAndDocument(w, r)
	if !ok {
		return
	}
	doc, err := h.service.RunOCR(ctx, caller, docID)
	if err != nil {
		httputil.LogAndWriteError(ctx, w, h.logger, "ocr failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, doc)
}

func (h *Handler) callerAndDocument(w http.ResponseWriter, r *http.Request) (id.Caller, id.DocumentID, bool) {
	caller, ok := httputil.RequireCaller(w, r.Context())
	if !ok {
		return id.Caller{}, id.DocumentID{}, false
	}
	docID, err := id.ParseDocumentID(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.Caller{}, id.DocumentID{}, false
	}
	return caller, docID, true
}

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/perfkit/lighthouse-compare/internal/auditor"
	"github.com/perfkit/lighthouse-compare/internal/compare"
	"github.com/perfkit/lighthouse-compare/internal/config"
	"github.com/perfkit/lighthouse-compare/internal/models"
	"github.com/perfkit/lighthouse-compare/internal/observability"
	"github.com/perfkit/lighthouse-compare/internal/storage"
	"github.com/perfkit/lighthouse-compare/internal/utils"
	"github.com/perfkit/lighthouse-compare/internal/vcs"
)

var tracer = otel.Tracer("lighthouse-compare/handler")

type Handler struct {
	cfg     *config.Config
	auditor *auditor.Auditor
	storage *storage.Service
}

func NewHandler(cfg *config.Config, aud *auditor.Auditor, storage *storage.Service) *Handler {
	return &Handler{cfg: cfg, auditor: aud, storage: storage}
}

func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") && h.cfg.AuthToken != "" {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") || authHeader[7:] != h.cfg.AuthToken {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	var req models.AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid Request Body", http.StatusBadRequest)
		return
	}

	if len(req.URLs) == 0 {
		renderError(w, "At least one URL is required", nil, http.StatusBadRequest)
		return
	}
	if len(req.URLs) > h.cfg.Auditor.MaxURLs {
		renderError(w, fmt.Sprintf("At most %d URLs are allowed", h.cfg.Auditor.MaxURLs), nil, http.StatusBadRequest)
		return
	}
	for _, u := range req.URLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			renderError(w, fmt.Sprintf("Invalid URL: %s", u), nil, http.StatusBadRequest)
			return
		}
	}

	id := uuid.NewString()
	runDir := filepath.Join(os.TempDir(), "lighthouse-compare", id)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		renderError(w, "Failed to create run directory", nil, http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(runDir)

	if req.Branch1 != "" && req.Branch2 != "" && req.ProjectPath != "" {
		h.compareBranches(w, r, req, id, runDir)
		return
	}

	log.Printf("Starting audit %s for URLs: %v", id, req.URLs)
	reports := h.auditor.AuditAll(r.Context(), req.URLs, "", runDir)
	h.archive(r.Context(), id, runDir, nil)

	writeJSON(w, models.SingleResponse{ID: id, Single: reports})
}

// compareBranches audits every URL on branch1, then on branch2, and feeds
// the two report sequences into the comparison engine. A checkout failure
// aborts the whole request; no partial branch results are returned.
func (h *Handler) compareBranches(w http.ResponseWriter, r *http.Request, req models.AuditRequest, id, runDir string) {
	ctx, span := tracer.Start(r.Context(), "handler.compareBranches")
	span.SetAttributes(
		attribute.String("compare.branch1", req.Branch1),
		attribute.String("compare.branch2", req.Branch2),
		attribute.Int("compare.urls", len(req.URLs)),
	)
	defer span.End()

	log.Printf("Starting branch comparison %s: %s vs %s for URLs: %v", id, req.Branch1, req.Branch2, req.URLs)

	if err := vcs.Checkout(ctx, req.ProjectPath, req.Branch1); err != nil {
		h.checkoutFailed(w, req.Branch1, err)
		return
	}
	baseline := h.auditor.AuditAll(ctx, req.URLs, req.Branch1, runDir)

	if err := vcs.Checkout(ctx, req.ProjectPath, req.Branch2); err != nil {
		h.checkoutFailed(w, req.Branch2, err)
		return
	}
	candidate := h.auditor.AuditAll(ctx, req.URLs, req.Branch2, runDir)

	comparison := compare.Compare(baseline, candidate, req.Branch1, req.Branch2)
	observability.ComparisonsTotal.Inc()

	h.archive(ctx, id, runDir, &comparison)

	writeJSON(w, models.CompareResponse{
		ID:         id,
		Branch1:    baseline,
		Branch2:    candidate,
		Comparison: &comparison,
	})
}

func (h *Handler) checkoutFailed(w http.ResponseWriter, branch string, err error) {
	observability.CheckoutFailuresTotal.Inc()
	sentry.CaptureException(err)
	log.Printf("Checkout of %s failed: %v", branch, err)
	renderError(w, fmt.Sprintf("Failed to check out branch %s", branch), strPtr(err.Error()), http.StatusInternalServerError)
}

// archive uploads the comparison JSON and a zip of the raw Lighthouse
// reports. Archival is best effort: the response the client already earned
// is never failed over it.
func (h *Handler) archive(ctx context.Context, id, runDir string, comparison *models.ComparisonResult) {
	if h.storage == nil {
		return
	}

	if comparison != nil {
		if err := h.storage.UploadJSON(ctx, resultKey(id), comparison); err != nil {
			log.Printf("Failed to upload comparison %s: %v", id, err)
		}
	}

	zipPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s.zip", id))
	if err := utils.ZipDirectory(runDir, zipPath); err != nil {
		log.Printf("Failed to zip raw reports for %s: %v", id, err)
		return
	}
	defer os.Remove(zipPath)

	if err := h.storage.UploadFile(ctx, rawKey(id), zipPath); err != nil {
		log.Printf("Failed to upload raw reports for %s: %v", id, err)
	}
}

func (h *Handler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validID(id) {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	if h.storage == nil {
		http.NotFound(w, r)
		return
	}

	stream, contentType, lastModified, err := h.storage.GetFile(r.Context(), resultKey(id))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "application/json")
	if contentType != nil {
		w.Header().Set("Content-Type", *contentType)
	}
	if lastModified != nil {
		w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}

	io.Copy(w, stream)
}

func (h *Handler) HandleDeleteResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validID(id) {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	if h.storage != nil {
		h.storage.DeleteFile(r.Context(), resultKey(id))
		h.storage.DeleteFile(r.Context(), rawKey(id))
	}
	w.WriteHeader(http.StatusOK)
}

func resultKey(id string) string {
	return fmt.Sprintf("reports/%s/comparison.json", id)
}

func rawKey(id string) string {
	return fmt.Sprintf("reports/%s/raw.zip", id)
}

func validID(id string) bool {
	return id != "" && !strings.Contains(id, "..") && !strings.Contains(id, "/") && !strings.Contains(id, "\\")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func renderError(w http.ResponseWriter, msg string, details *string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   msg,
		Details: details,
	})
}

func strPtr(v string) *string {
	return &v
}

package httpapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/shared/kioskapi"
)

type sessionDTO struct {
	SessionID string     `json:"session_id"`
	EventID   string     `json:"event_id"`
	EventName string     `json:"event_name,omitempty"`
	Token     string     `json:"token,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}

type signatureDTO struct {
	ID                   string     `json:"id"`
	EventID              string     `json:"event_id"`
	EventName            string     `json:"event_name"`
	GuestID              string     `json:"guest_id"`
	FirstName            string     `json:"first_name"`
	LastName             string     `json:"last_name"`
	SmUsername           string     `json:"sm_username"`
	Phone                string     `json:"phone"`
	Language             string     `json:"language"`
	SignedAt             time.Time  `json:"signed_at"`
	SignatureStoragePath string     `json:"signature_storage_path"`
	PDFStoragePath       *string    `json:"pdf_storage_path"`
	PDFSHA256            *string    `json:"pdf_sha256"`
	VerifiedAt           *time.Time `json:"verified_at"`
	VerifiedBy           *string    `json:"verified_by"`
}

func toSignatureDTO(item *domain.SignatureListItem) signatureDTO {
	sig := item.Signature
	dto := signatureDTO{
		ID:                   sig.ID.String(),
		EventID:              sig.EventID.String(),
		EventName:            item.EventName,
		GuestID:              sig.GuestID.String(),
		FirstName:            item.GuestFirstName,
		LastName:             item.GuestLastName,
		SmUsername:           item.GuestUsername,
		Phone:                item.GuestPhone,
		Language:             string(sig.Language),
		SignedAt:             sig.SignedAt,
		SignatureStoragePath: sig.SignatureStoragePath,
		PDFStoragePath:       sig.PDFStoragePath,
		PDFSHA256:            sig.PDFSHA256,
		VerifiedAt:           sig.VerifiedAt,
	}
	if sig.VerifiedBy != nil {
		s := sig.VerifiedBy.String()
		dto.VerifiedBy = &s
	}
	return dto
}

func toSignatureDTOs(items []*domain.SignatureListItem) []signatureDTO {
	out := make([]signatureDTO, 0, len(items))
	for _, item := range items {
		out = append(out, toSignatureDTO(item))
	}
	return out
}

// uuidParam parses a path parameter. A malformed id is reported as the
// not-found error of that resource.
func uuidParam(r *http.Request, name string, notFound error) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

func (h *handler) handleIssueSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EventID string `json:"event_id"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kioskapi.CodeBadJSON, "request body is not valid JSON")
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		writeDomainError(w, r, domain.NewValidationError("event_id", "must be a UUID"))
		return
	}

	issued, err := h.sessions.Issue(r.Context(), staffFrom(r.Context()), eventID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"request_id": requestID(r.Context()),
		"session": sessionDTO{
			SessionID: issued.SessionID.String(),
			EventID:   issued.EventID.String(),
			EventName: issued.EventName,
			Token:     issued.Token,
			ExpiresAt: issued.ExpiresAt,
		},
	})
}

func (h *handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "session_id", domain.ErrKioskSessionNotFound)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.sessions.Revoke(r.Context(), staffFrom(r.Context()), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event_id", domain.ErrEventNotFound)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	list, err := h.sessions.ListActive(r.Context(), staffFrom(r.Context()), eventID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]sessionDTO, 0, len(list))
	for _, ks := range list {
		created := ks.CreatedAt
		out = append(out, sessionDTO{
			SessionID: ks.ID.String(),
			EventID:   ks.EventID.String(),
			CreatedAt: &created,
			ExpiresAt: ks.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"request_id": requestID(r.Context()), "sessions": out})
}

func (h *handler) handleListPending(w http.ResponseWriter, r *http.Request) {
	items, err := h.attestation.ListPending(r.Context(), staffFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r.Context()),
		"signatures": toSignatureDTOs(items),
	})
}

func (h *handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "signature_id", domain.ErrSignatureNotFound)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	res, err := h.attestation.Verify(r.Context(), staffFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id":        requestID(r.Context()),
		"signature_id":      res.SignatureID.String(),
		"event_id":          res.EventID.String(),
		"verified_at":       res.VerifiedAt,
		"verified_by":       res.VerifiedBy.String(),
		"status_propagated": res.StatusPropagated,
	})
}

func (h *handler) handleDeleteSignature(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "signature_id", domain.ErrSignatureNotFound)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.attestation.DeleteSignature(r.Context(), staffFrom(r.Context()), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleListSignatures(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event_id", domain.ErrEventNotFound)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	items, err := h.admin.ListSignatures(r.Context(), staffFrom(r.Context()), eventID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r.Context()),
		"signatures": toSignatureDTOs(items),
	})
}

// handleExportSignatures renders into a buffer first so a failed export
// still gets a JSON error instead of a truncated workbook.
func (h *handler) handleExportSignatures(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "event_id", domain.ErrEventNotFound)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := h.admin.ExportSignaturesXLSX(r.Context(), staffFrom(r.Context()), eventID, &buf); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="signatures-%s.xlsx"`, eventID))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Failed to stream export")
	}
}

func (h *handler) handleSignedURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bucket string `json:"bucket"`
		Path   string `json:"path"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kioskapi.CodeBadJSON, "request body is not valid JSON")
		return
	}
	url, err := h.admin.SignedURL(r.Context(), staffFrom(r.Context()), req.Bucket, req.Path)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r.Context()),
		"signed_url": url,
	})
}

func (h *handler) handlePDFSource(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "signature_id", domain.ErrSignatureNotFound)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	src, err := h.admin.PDFSource(r.Context(), staffFrom(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id":            requestID(r.Context()),
		"signature":             toSignatureDTO(src.Item),
		"nda_text_snapshot":     src.Item.Signature.NDATextSnapshot,
		"privacy_text_snapshot": src.Item.Signature.PrivacyTextSnapshot,
		"privacy_version":       src.Item.Signature.PrivacyVersion,
		"signature_png_base64":  base64.StdEncoding.EncodeToString(src.SignatureImage),
	})
}

func (h *handler) handleRecordPDF(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "signature_id", domain.ErrSignatureNotFound)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var req struct {
		Path   string `json:"path"`
		SHA256 string `json:"sha256"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kioskapi.CodeBadJSON, "request body is not valid JSON")
		return
	}
	rec, err := h.admin.RecordPDF(r.Context(), staffFrom(r.Context()), id, req.Path, req.SHA256)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID(r.Context()),
		"path":       rec.Path,
		"sha256":     rec.SHA256,
		"cached":     rec.Cached,
	})
}

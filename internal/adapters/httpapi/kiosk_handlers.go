package httpapi

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/services"
	"github.com/thoknuts/nda-sm-platform/internal/shared/kioskapi"
)

// toLookup turns the wire request into the typed step. An unknown or missing
// step is rejected rather than guessed from the fields present.
func toLookup(req kioskapi.LookupRequest) (services.LookupRequest, error) {
	switch req.Step {
	case services.StepVerifyUsername:
		return services.VerifyUsernameRequest{Username: req.SmUsername}, nil
	case services.StepLookupPhone:
		return services.LookupPhoneRequest{Username: req.SmUsername, Phone: req.Phone}, nil
	case "":
		return nil, domain.NewValidationError("step", "is required")
	default:
		return nil, domain.NewValidationError("step", "must be verify_username or lookup_phone")
	}
}

func (h *handler) handleKioskLookup(w http.ResponseWriter, r *http.Request) {
	if h.rateLimited(r, "lookup") {
		writeError(w, r, http.StatusTooManyRequests, kioskapi.CodeRateLimited, "too many lookups, please wait a moment")
		return
	}

	var req kioskapi.LookupRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kioskapi.CodeBadJSON, "request body is not valid JSON")
		return
	}

	session, err := h.kioskSession(r, req.EventID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	lookup, err := toLookup(req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := h.lookup.Lookup(r.Context(), session, lookup)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if res.Verify != nil {
		writeJSON(w, http.StatusOK, kioskapi.VerifyUsernameResponse{
			RequestID:   requestID(r.Context()),
			Step:        services.StepVerifyUsername,
			OnGuestList: res.Verify.OnGuestList,
			SmUsername:  res.Verify.Username,
		})
		return
	}

	p := res.Prefill
	writeJSON(w, http.StatusOK, kioskapi.PrefillResponse{
		RequestID:      requestID(r.Context()),
		Step:           services.StepLookupPhone,
		SmUsername:     p.Username,
		UsernameLocked: p.UsernameLocked,
		Phone:          p.Phone,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		Email:          p.Email,
		Location:       p.Location,
		GuestType:      p.GuestType,
		GuestExists:    p.GuestExists,
		PrefillSource:  string(p.Source),
	})
}

// decodeSignature accepts bare base64 or a data: URL.
func decodeSignature(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i > 0 {
		s = s[i+1:]
	}
	if s == "" {
		return nil, domain.ErrMissingFields
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, domain.NewValidationError("signature_png_base64", "is not valid base64")
	}
	return b, nil
}

func (h *handler) handleKioskSubmit(w http.ResponseWriter, r *http.Request) {
	var p kioskapi.SubmitPayload
	if err := readJSON(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, kioskapi.CodeBadJSON, "request body is not valid JSON")
		return
	}

	session, err := h.kioskSession(r, p.EventID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	png, err := decodeSignature(p.SignaturePNGBase64)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := h.submission.Submit(r.Context(), session, services.SubmitRequest{
		Username:        p.SmUsername,
		Phone:           p.Phone,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		Email:           p.Email,
		Location:        p.Location,
		Language:        domain.Language(p.Language),
		ReadConfirmed:   p.ReadConfirmed,
		PrivacyAccepted: p.PrivacyAccepted,
		SignaturePNG:    png,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, kioskapi.SubmitResponse{
		RequestID:    requestID(r.Context()),
		SignatureID:  res.SignatureID.String(),
		GuestID:      res.GuestID.String(),
		Status:       string(res.Status),
		PhoneChanged: res.PhoneChanged,
		Message:      res.Message,
	})
}

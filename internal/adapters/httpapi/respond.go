package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/shared/kioskapi"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, kioskapi.NewErrorEnvelope(requestID(r.Context()), kioskapi.ErrorBody{Code: code, Message: message}))
}

// writeDomainError maps err onto the status and code of its kind. Anything
// unrecognized is a 500 with a generic message.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, kioskapi.NewErrorEnvelope(requestID(r.Context()), kioskapi.ErrorBody{
			Code: kioskapi.CodeValidation, Message: ve.Error(), Field: ve.Field,
		}))
		return
	}
	if m, ok := kioskapi.MappingFor(err); ok {
		writeError(w, r, m.Status, m.Code, m.Err.Error())
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
	writeError(w, r, http.StatusInternalServerError, kioskapi.CodeInternal, "internal error, please try again")
}

package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/services"
	"github.com/thoknuts/nda-sm-platform/internal/shared/kioskapi"
)

// ErrRateLimited is returned when the server throttles lookups.
var ErrRateLimited = errors.New("too many lookups, please wait a moment")

// APIError is a non-2xx answer the client could not map to a domain error.
type APIError struct {
	Status int
	Code   string
	Msg    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned %d %s: %s", e.Status, e.Code, e.Msg)
}

// APIClient calls the kiosk endpoints of the server.
type APIClient struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewAPIClient creates a client for the server at baseURL. There are no
// automatic retries; the offline queue retries submissions.
func NewAPIClient(baseURL string, baseLogger *zerolog.Logger) *APIClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json").
		SetError(&kioskapi.ErrorEnvelope{})
	return &APIClient{
		http: client,
		log:  baseLogger.With().Str("component", "kiosk_api_client").Logger(),
	}
}

// toError turns a failed response into a domain error where possible.
func toError(resp *resty.Response) error {
	env, _ := resp.Error().(*kioskapi.ErrorEnvelope)
	if env == nil {
		return &APIError{Status: resp.StatusCode(), Msg: resp.Status()}
	}
	if env.Error.Code == kioskapi.CodeRateLimited {
		return ErrRateLimited
	}
	if err := kioskapi.ErrorForCode(env.Error); err != nil {
		return err
	}
	return &APIError{Status: resp.StatusCode(), Code: env.Error.Code, Msg: env.Error.Message}
}

func (c *APIClient) lookup(ctx context.Context, token string, req kioskapi.LookupRequest, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(kioskapi.KioskTokenHeader, token).
		SetBody(req).
		SetResult(out).
		Post("/api/v1/kiosk/lookup")
	if err != nil {
		return fmt.Errorf("lookup %s: %w", req.Step, err)
	}
	if resp.IsError() {
		return toError(resp)
	}
	return nil
}

// VerifyUsername runs lookup step one.
func (c *APIClient) VerifyUsername(ctx context.Context, sess *DeviceSession, username string) (*kioskapi.VerifyUsernameResponse, error) {
	var out kioskapi.VerifyUsernameResponse
	err := c.lookup(ctx, sess.Token, kioskapi.LookupRequest{
		EventID:    sess.EventID,
		Step:       services.StepVerifyUsername,
		SmUsername: username,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LookupPhone runs lookup step two and returns the prefill.
func (c *APIClient) LookupPhone(ctx context.Context, sess *DeviceSession, username, phone string) (*kioskapi.PrefillResponse, error) {
	var out kioskapi.PrefillResponse
	err := c.lookup(ctx, sess.Token, kioskapi.LookupRequest{
		EventID:    sess.EventID,
		Step:       services.StepLookupPhone,
		SmUsername: username,
		Phone:      phone,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit posts a signed NDA with the given kiosk token.
func (c *APIClient) Submit(ctx context.Context, token string, payload kioskapi.SubmitPayload) (*kioskapi.SubmitResponse, error) {
	var out kioskapi.SubmitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader(kioskapi.KioskTokenHeader, token).
		SetBody(payload).
		SetResult(&out).
		Post("/api/v1/kiosk/signatures")
	if err != nil {
		return nil, fmt.Errorf("submit signature: %w", err)
	}
	if resp.IsError() {
		return nil, toError(resp)
	}
	c.log.Debug().Str("signature_id", out.SignatureID).Msg("Signature submitted")
	return &out, nil
}

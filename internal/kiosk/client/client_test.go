package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/kiosk/connectivity"
	"github.com/thoknuts/nda-sm-platform/internal/kiosk/offlinequeue"
	"github.com/thoknuts/nda-sm-platform/internal/shared/kioskapi"
)

var nopLogger = zerolog.Nop()

func openDevice(t *testing.T) *offlinequeue.SQLiteStore {
	t.Helper()
	store, err := offlinequeue.OpenSQLite(filepath.Join(t.TempDir(), "kiosk.db"), &nopLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeEnvelope(w http.ResponseWriter, status int, body kioskapi.ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(kioskapi.ErrorEnvelope{RequestID: "req_test", Error: body})
}

func testSession() *DeviceSession {
	return &DeviceSession{
		Token:     "kiosk-token",
		SessionID: "sess-1",
		EventID:   "11111111-1111-1111-1111-111111111111",
		EventName: "Summer party",
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func TestSessionStore_DropsExpired(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(openDevice(t))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := testSession()
	require.NoError(t, store.Save(ctx, *sess))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Summer party", got.EventName)

	store.now = func() time.Time { return sess.ExpiresAt.Add(time.Second) }
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	store.now = time.Now
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "expired session must have been deleted")
}

func TestAPIClient_LookupSendsTokenAndStep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/kiosk/lookup", r.URL.Path)
		assert.Equal(t, "kiosk-token", r.Header.Get(kioskapi.KioskTokenHeader))

		var req kioskapi.LookupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		switch req.Step {
		case "verify_username":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(kioskapi.VerifyUsernameResponse{Step: req.Step, OnGuestList: true, SmUsername: "ola.nordmann"})
		case "lookup_phone":
			writeEnvelope(w, http.StatusConflict, kioskapi.ErrorBody{Code: kioskapi.CodePhoneAlreadyUsed, Message: "phone already used"})
		}
	}))
	defer srv.Close()

	api := NewAPIClient(srv.URL, &nopLogger)
	ctx := context.Background()

	res, err := api.VerifyUsername(ctx, testSession(), "Ola.Nordmann")
	require.NoError(t, err)
	assert.True(t, res.OnGuestList)
	assert.Equal(t, "ola.nordmann", res.SmUsername)

	_, err = api.LookupPhone(ctx, testSession(), "ola.nordmann", "4746427042")
	assert.ErrorIs(t, err, domain.ErrPhoneAlreadyUsed)
}

func TestAPIClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   kioskapi.ErrorBody
		check  func(t *testing.T, err error)
	}{
		{"duplicate", http.StatusConflict, kioskapi.ErrorBody{Code: kioskapi.CodeDuplicateSignature}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrDuplicateSignature)
		}},
		{"session", http.StatusUnauthorized, kioskapi.ErrorBody{Code: kioskapi.CodeInvalidKioskSession}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, domain.ErrInvalidKioskSession)
		}},
		{"validation", http.StatusBadRequest, kioskapi.ErrorBody{Code: kioskapi.CodeValidation, Field: "phone", Message: "phone: must have 8 to 15 digits"}, func(t *testing.T, err error) {
			var ve *domain.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, "phone", ve.Field)
			assert.Equal(t, "must have 8 to 15 digits", ve.Message)
		}},
		{"rate limited", http.StatusTooManyRequests, kioskapi.ErrorBody{Code: kioskapi.CodeRateLimited}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrRateLimited)
		}},
		{"internal", http.StatusInternalServerError, kioskapi.ErrorBody{Code: kioskapi.CodeInternal}, func(t *testing.T, err error) {
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
			assert.True(t, shouldQueue(err))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, tt.status, tt.body)
			}))
			defer srv.Close()

			_, err := NewAPIClient(srv.URL, &nopLogger).Submit(context.Background(), "tok", kioskapi.SubmitPayload{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

// flakyServer accepts submissions only while up is set.
func flakyServer(t *testing.T, up *atomic.Bool, accepted *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			writeEnvelope(w, http.StatusServiceUnavailable, kioskapi.ErrorBody{Code: kioskapi.CodeInternal})
			return
		}
		accepted.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(kioskapi.SubmitResponse{SignatureID: "sig-1", Status: "signed_pending_verification"})
	}))
}

func TestAgent_QueuesWhileDownAndSyncsAfter(t *testing.T) {
	ctx := context.Background()
	var up atomic.Bool
	var accepted atomic.Int32
	srv := flakyServer(t, &up, &accepted)
	defer srv.Close()

	queue, err := offlinequeue.New(ctx, openDevice(t), &nopLogger)
	require.NoError(t, err)
	monitor := connectivity.NewMonitor(true, &nopLogger)
	agent := NewAgent(NewAPIClient(srv.URL, &nopLogger), queue, monitor, &nopLogger)

	// 1. Server down: the submission is queued and the device goes offline
	out, err := agent.SubmitOrQueue(ctx, testSession(), kioskapi.SubmitPayload{SmUsername: "ola"})
	require.NoError(t, err)
	assert.True(t, out.Queued)
	assert.False(t, monitor.Online())

	// 2. Offline: queued without trying the server
	out, err = agent.SubmitOrQueue(ctx, testSession(), kioskapi.SubmitPayload{SmUsername: "kari"})
	require.NoError(t, err)
	assert.True(t, out.Queued)

	n, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 3. Back online: sync drains everything
	up.Store(true)
	res, err := agent.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, offlinequeue.SyncResult{Synced: 2}, res)
	assert.Equal(t, int32(2), accepted.Load())

	n, err = queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAgent_ConflictIsNotQueued(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, kioskapi.ErrorBody{Code: kioskapi.CodeDuplicateSignature})
	}))
	defer srv.Close()

	queue, err := offlinequeue.New(ctx, openDevice(t), &nopLogger)
	require.NoError(t, err)
	agent := NewAgent(NewAPIClient(srv.URL, &nopLogger), queue, nil, &nopLogger)

	_, err = agent.SubmitOrQueue(ctx, testSession(), kioskapi.SubmitPayload{SmUsername: "ola"})
	assert.ErrorIs(t, err, domain.ErrDuplicateSignature)

	n, err := queue.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAgent_SyncOnReconnect(t *testing.T) {
	ctx := context.Background()
	var up atomic.Bool
	var accepted atomic.Int32
	srv := flakyServer(t, &up, &accepted)
	defer srv.Close()

	queue, err := offlinequeue.New(ctx, openDevice(t), &nopLogger)
	require.NoError(t, err)
	monitor := connectivity.NewMonitor(false, &nopLogger)
	agent := NewAgent(NewAPIClient(srv.URL, &nopLogger), queue, monitor, &nopLogger)
	unsubscribe := agent.SyncOnReconnect(ctx)
	defer unsubscribe()

	_, err = agent.SubmitOrQueue(ctx, testSession(), kioskapi.SubmitPayload{SmUsername: "ola"})
	require.NoError(t, err)

	up.Store(true)
	monitor.Set(true)

	assert.Eventually(t, func() bool {
		n, err := queue.Count(ctx)
		return err == nil && n == 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), accepted.Load())
}

package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/kiosk/connectivity"
	"github.com/thoknuts/nda-sm-platform/internal/kiosk/offlinequeue"
	"github.com/thoknuts/nda-sm-platform/internal/shared/kioskapi"
)

// Submitter is the part of APIClient the agent needs.
type Submitter interface {
	Submit(ctx context.Context, token string, payload kioskapi.SubmitPayload) (*kioskapi.SubmitResponse, error)
}

// SubmitOutcome is what the kiosk screen shows after a submission.
type SubmitOutcome struct {
	Response *kioskapi.SubmitResponse // nil when queued
	Queued   bool
	QueueID  string
}

// Agent submits signatures and falls back to the offline queue.
type Agent struct {
	api     Submitter
	queue   *offlinequeue.Queue
	monitor *connectivity.Monitor
	log     zerolog.Logger

	syncMu sync.Mutex
}

// NewAgent creates an agent. monitor may be nil, in which case every
// submission is attempted online first.
func NewAgent(api Submitter, queue *offlinequeue.Queue, monitor *connectivity.Monitor, baseLogger *zerolog.Logger) *Agent {
	return &Agent{
		api:     api,
		queue:   queue,
		monitor: monitor,
		log:     baseLogger.With().Str("component", "kiosk_agent").Logger(),
	}
}

// SubmitOrQueue submits online when possible. Transport and server
// failures queue the submission; validation, session and conflict errors
// are returned so the guest can correct them.
func (a *Agent) SubmitOrQueue(ctx context.Context, sess *DeviceSession, payload kioskapi.SubmitPayload) (*SubmitOutcome, error) {
	if sess == nil {
		return nil, domain.ErrInvalidKioskSession
	}
	payload.EventID = sess.EventID

	if a.monitor == nil || a.monitor.Online() {
		resp, err := a.api.Submit(ctx, sess.Token, payload)
		if err == nil {
			return &SubmitOutcome{Response: resp}, nil
		}
		if !shouldQueue(err) {
			return nil, err
		}
		a.log.Warn().Err(err).Msg("Submission failed, queueing offline")
		if a.monitor != nil {
			a.monitor.Set(false)
		}
	}

	id, err := a.queue.Save(ctx, sess.EventID, sess.Token, payload)
	if err != nil {
		return nil, fmt.Errorf("queue submission: %w", err)
	}
	return &SubmitOutcome{Queued: true, QueueID: id}, nil
}

// shouldQueue reports whether a failed submission may succeed later
// unchanged.
func shouldQueue(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
		return false
	}
	return domain.IsRetryable(err)
}

// Sync drains the offline queue. Concurrent calls run one at a time.
func (a *Agent) Sync(ctx context.Context) (offlinequeue.SyncResult, error) {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	return a.queue.Sync(ctx, func(ctx context.Context, p offlinequeue.PendingSignature) error {
		_, err := a.api.Submit(ctx, p.KioskToken, p.Payload)
		return err
	})
}

// SyncOnReconnect drains the queue on every transition to online. It
// returns the unsubscribe func.
func (a *Agent) SyncOnReconnect(ctx context.Context) func() {
	return a.monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			res, err := a.Sync(ctx)
			if err != nil {
				a.log.Error().Err(err).Msg("Sync after reconnect failed")
				return
			}
			a.log.Info().Int("synced", res.Synced).Int("failed", res.Failed).Msg("Synced after reconnect")
		}()
	})
}

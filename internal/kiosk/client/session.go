// Package client is the kiosk device side: the current session, the API
// client and the agent that falls back to the offline queue.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// KeySession is where the device keeps its current session.
const KeySession = "kiosk_session"

// DeviceSession is the kiosk session a device was paired with.
type DeviceSession struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	EventID   string    `json:"event_id"`
	EventName string    `json:"event_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *DeviceSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore persists the DeviceSession in the device store.
type SessionStore struct {
	kv  ports.KeyValueStore
	now func() time.Time
}

// NewSessionStore creates a store over kv.
func NewSessionStore(kv ports.KeyValueStore) *SessionStore {
	return &SessionStore{kv: kv, now: time.Now}
}

// Save replaces the stored session.
func (s *SessionStore) Save(ctx context.Context, sess DeviceSession) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.kv.Set(ctx, KeySession, raw)
}

// Load returns the stored session, or nil when there is none. An expired
// session is deleted and reported as none.
func (s *SessionStore) Load(ctx context.Context) (*DeviceSession, error) {
	raw, err := s.kv.Get(ctx, KeySession)
	if err != nil || raw == nil {
		return nil, err
	}
	var sess DeviceSession
	if err := json.Unmarshal(raw, &sess); err != nil || sess.Expired(s.now()) {
		return nil, s.Clear(ctx)
	}
	return &sess, nil
}

// Clear forgets the session.
func (s *SessionStore) Clear(ctx context.Context) error {
	return s.kv.Delete(ctx, KeySession)
}

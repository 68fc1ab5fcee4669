package offlinequeue

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/adapters/security"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
	"github.com/thoknuts/nda-sm-platform/internal/shared/kioskapi"
)

// Store keys.
const (
	KeyEncryptionKey = "encryption_key"
	PendingPrefix    = "pending_sig_"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// PendingSignature is a decrypted queue entry.
type PendingSignature struct {
	ID         string
	Timestamp  time.Time
	EventID    string
	KioskToken string
	Payload    kioskapi.SubmitPayload
}

// SubmitFunc delivers one queued submission to the server.
type SubmitFunc func(ctx context.Context, p PendingSignature) error

// SyncResult counts the outcome of one Sync pass.
type SyncResult struct {
	Synced int
	Failed int
}

// storedEntry is the at-rest form. Only data is encrypted.
type storedEntry struct {
	ID         string     `json:"id"`
	Timestamp  int64      `json:"timestamp"`
	EventID    string     `json:"event_id"`
	KioskToken string     `json:"kiosk_token"`
	Data       sealedData `json:"data"`
	Encrypted  bool       `json:"encrypted"`
}

type sealedData struct {
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}

// Queue is the encrypted pending-signature queue of one device.
type Queue struct {
	kv  ports.KeyValueStore
	sec ports.SecurityPort
	log zerolog.Logger
	now func() time.Time
}

// New opens the queue, generating the device key on first use.
func New(ctx context.Context, kv ports.KeyValueStore, baseLogger *zerolog.Logger) (*Queue, error) {
	log := baseLogger.With().Str("component", "offline_queue").Logger()

	sec, err := loadOrCreateKey(ctx, kv, &log)
	if err != nil {
		return nil, err
	}
	return &Queue{kv: kv, sec: sec, log: log, now: time.Now}, nil
}

func loadOrCreateKey(ctx context.Context, kv ports.KeyValueStore, log *zerolog.Logger) (ports.SecurityPort, error) {
	stored, err := kv.Get(ctx, KeyEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("load device key: %w", err)
	}
	if stored != nil {
		return security.NewAESServiceFromHex(string(stored), log)
	}

	// A lost key leaves old entries unreadable; List skips them and Purge drops them.
	keys, err := kv.Keys(ctx, PendingPrefix)
	if err != nil {
		return nil, fmt.Errorf("inspect queue: %w", err)
	}
	if len(keys) > 0 {
		log.Warn().Int("orphaned", len(keys)).Msg("Device key missing while entries are queued; generating a new key")
	}

	hexKey, err := security.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := kv.Set(ctx, KeyEncryptionKey, []byte(hexKey)); err != nil {
		return nil, fmt.Errorf("store device key: %w", err)
	}
	log.Info().Msg("Generated device encryption key")
	return security.NewAESServiceFromHex(hexKey, log)
}

// newID returns "{unix millis}_{9 random base36 chars}".
func newID(now time.Time) (string, error) {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	sb.WriteByte('_')
	base := big.NewInt(int64(len(idAlphabet)))
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		sb.WriteByte(idAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// Save encrypts and stores a submission, returning its id.
func (q *Queue) Save(ctx context.Context, eventID, kioskToken string, payload kioskapi.SubmitPayload) (string, error) {
	now := q.now()
	id, err := newID(now)
	if err != nil {
		return "", err
	}

	plain, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	sealed, err := q.sec.Encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("encrypt payload: %w", err)
	}

	entry := storedEntry{
		ID:         id,
		Timestamp:  now.UnixMilli(),
		EventID:    eventID,
		KioskToken: kioskToken,
		Data: sealedData{
			IV:         base64.StdEncoding.EncodeToString(sealed[:security.NonceSize]),
			Ciphertext: base64.StdEncoding.EncodeToString(sealed[security.NonceSize:]),
		},
		Encrypted: true,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode entry: %w", err)
	}
	if err := q.kv.Set(ctx, PendingPrefix+id, raw); err != nil {
		return "", err
	}

	q.log.Info().Str("queue_id", id).Str("event_id", eventID).Msg("Submission queued offline")
	return id, nil
}

func (q *Queue) decode(raw []byte) (*PendingSignature, error) {
	var entry storedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if !entry.Encrypted {
		return nil, errors.New("entry is not encrypted")
	}
	iv, err := base64.StdEncoding.DecodeString(entry.Data.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(entry.Data.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	plain, err := q.sec.Decrypt(append(iv, ct...))
	if err != nil {
		return nil, err
	}

	p := &PendingSignature{
		ID:         entry.ID,
		Timestamp:  time.UnixMilli(entry.Timestamp),
		EventID:    entry.EventID,
		KioskToken: entry.KioskToken,
	}
	if err := json.Unmarshal(plain, &p.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

// List returns every readable entry, oldest first. Entries that fail to
// decode or decrypt are logged and skipped.
func (q *Queue) List(ctx context.Context) ([]PendingSignature, error) {
	keys, err := q.kv.Keys(ctx, PendingPrefix)
	if err != nil {
		return nil, err
	}

	out := make([]PendingSignature, 0, len(keys))
	for _, key := range keys {
		raw, err := q.kv.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue // removed concurrently
		}
		p, err := q.decode(raw)
		if err != nil {
			q.log.Warn().Err(err).Str("key", key).Msg("Skipping unreadable queue entry")
			continue
		}
		out = append(out, *p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Remove deletes an entry once it has been delivered.
func (q *Queue) Remove(ctx context.Context, id string) error {
	return q.kv.Delete(ctx, PendingPrefix+id)
}

// Count returns the number of stored entries, readable or not.
func (q *Queue) Count(ctx context.Context) (int, error) {
	keys, err := q.kv.Keys(ctx, PendingPrefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Sync replays the queue oldest first. A duplicate rejection means an
// earlier attempt already landed, so the entry is dropped and counted as
// synced. Any other failure keeps the entry and moves on.
func (q *Queue) Sync(ctx context.Context, submit SubmitFunc) (SyncResult, error) {
	var res SyncResult

	pending, err := q.List(ctx)
	if err != nil {
		return res, err
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := q.log.With().Str("queue_id", p.ID).Logger()

		err := submit(ctx, p)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrDuplicateSignature):
			log.Info().Msg("Server already has this signature")
		default:
			log.Warn().Err(err).Bool("retryable", domain.IsRetryable(err)).Msg("Queued submission failed")
			res.Failed++
			continue
		}

		if err := q.Remove(ctx, p.ID); err != nil {
			log.Error().Err(err).Msg("Delivered but could not remove queue entry")
			res.Failed++
			continue
		}
		res.Synced++
	}

	q.log.Info().Int("synced", res.Synced).Int("failed", res.Failed).Msg("Offline queue sync finished")
	return res, nil
}

// Purge deletes entries that can no longer be decrypted, e.g. after the
// device key was lost. It returns how many were removed.
func (q *Queue) Purge(ctx context.Context) (int, error) {
	keys, err := q.kv.Keys(ctx, PendingPrefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		raw, err := q.kv.Get(ctx, key)
		if err != nil {
			return removed, err
		}
		if raw == nil {
			continue
		}
		if _, err := q.decode(raw); err == nil {
			continue
		}
		if err := q.kv.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		q.log.Warn().Int("removed", removed).Msg("Purged unreadable queue entries")
	}
	return removed, nil
}

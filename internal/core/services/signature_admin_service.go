package services

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/thoknuts/nda-sm-platform/internal/core/ports"
)

// SignedURLTTL is how long a signed storage URL stays usable.
const SignedURLTTL = time.Hour

var sha256Hex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// PDFRecord is the cached PDF pointer of a signature.
type PDFRecord struct {
	Path   string
	SHA256 string
	// Cached is true when an earlier render was already recorded; Path and
	// SHA256 then describe that earlier file.
	Cached bool
}

// PDFSource is everything a PDF renderer reads for one signature.
type PDFSource struct {
	Item           *domain.SignatureListItem
	SignatureImage []byte
}

// SignatureAdminService serves the staff listing, export and storage screens.
type SignatureAdminService struct {
	log        zerolog.Logger
	auth       *Authorizer
	signatures ports.SignatureRepository
	blobs      ports.BlobStorage
	audit      ports.AuditSink
	exporter   ports.SignatureExporter
}

// NewSignatureAdminService creates the service.
func NewSignatureAdminService(
	auth *Authorizer,
	signatures ports.SignatureRepository,
	blobs ports.BlobStorage,
	audit ports.AuditSink,
	exporter ports.SignatureExporter,
	baseLogger *zerolog.Logger,
) *SignatureAdminService {
	return &SignatureAdminService{
		log:        baseLogger.With().Str("component", "signature_admin_service").Logger(),
		auth:       auth,
		signatures: signatures,
		blobs:      blobs,
		audit:      audit,
		exporter:   exporter,
	}
}

// ListSignatures returns an event's signatures, most recent first.
func (s *SignatureAdminService) ListSignatures(ctx context.Context, caller *domain.Staff, eventID uuid.UUID) ([]*domain.SignatureListItem, error) {
	if _, err := s.auth.AuthorizeEvent(ctx, caller, eventID); err != nil {
		return nil, err
	}
	items, err := s.signatures.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	return items, nil
}

// ExportSignaturesXLSX writes the event's signature list to w.
func (s *SignatureAdminService) ExportSignaturesXLSX(ctx context.Context, caller *domain.Staff, eventID uuid.UUID, w io.Writer) error {
	event, err := s.auth.AuthorizeEvent(ctx, caller, eventID)
	if err != nil {
		return err
	}
	items, err := s.signatures.ListByEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("list signatures: %w", err)
	}
	if err := s.exporter.Export(w, event.Name, items); err != nil {
		return fmt.Errorf("export signatures: %w", err)
	}
	s.log.Info().Str("event_id", eventID.String()).Int("rows", len(items)).Msg("Signatures exported")
	return nil
}

// SignedURL issues a short-lived download link. Object paths start with the
// event id, which is what access is checked against.
func (s *SignatureAdminService) SignedURL(ctx context.Context, caller *domain.Staff, bucket, path string) (string, error) {
	if err := checkCaller(caller); err != nil {
		return "", err
	}
	if bucket == "" || path == "" {
		return "", domain.ErrMissingFields
	}
	if bucket != domain.SignaturesBucket && bucket != domain.PDFBucket {
		return "", domain.NewValidationError("bucket", "unknown bucket")
	}
	if strings.Contains(path, "..") {
		return "", domain.NewValidationError("path", "invalid path")
	}

	prefix, _, _ := strings.Cut(path, "/")
	eventID, err := uuid.Parse(prefix)
	if err != nil {
		return "", domain.NewValidationError("path", "path must start with an event id")
	}
	if _, err := s.auth.AuthorizeEvent(ctx, caller, eventID); err != nil {
		return "", err
	}

	url, err := s.blobs.SignedURL(ctx, bucket, path, SignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return url, nil
}

func (s *SignatureAdminService) authorizedItem(ctx context.Context, caller *domain.Staff, signatureID uuid.UUID) (*domain.SignatureListItem, error) {
	if err := checkCaller(caller); err != nil {
		return nil, err
	}
	item, err := s.signatures.GetListItem(ctx, signatureID)
	if err != nil {
		return nil, fmt.Errorf("get signature: %w", err)
	}
	if item == nil {
		return nil, domain.ErrSignatureNotFound
	}
	if _, err := s.auth.AuthorizeEvent(ctx, caller, item.Signature.EventID); err != nil {
		return nil, err
	}
	return item, nil
}

// PDFSource loads the signature record and image for rendering.
func (s *SignatureAdminService) PDFSource(ctx context.Context, caller *domain.Staff, signatureID uuid.UUID) (*PDFSource, error) {
	item, err := s.authorizedItem(ctx, caller, signatureID)
	if err != nil {
		return nil, err
	}
	img, err := s.blobs.Get(ctx, domain.SignaturesBucket, item.Signature.SignatureStoragePath)
	if err != nil {
		return nil, fmt.Errorf("get signature image: %w", err)
	}
	return &PDFSource{Item: item, SignatureImage: img}, nil
}

// RecordPDF stores the pointer to a rendered PDF. The first recorded render
// wins and later calls get it back with Cached set.
func (s *SignatureAdminService) RecordPDF(ctx context.Context, caller *domain.Staff, signatureID uuid.UUID, path, sum string) (*PDFRecord, error) {
	if path == "" || sum == "" {
		return nil, domain.ErrMissingFields
	}
	sum = strings.ToLower(sum)
	if !sha256Hex.MatchString(sum) {
		return nil, domain.NewValidationError("pdf_sha256", "must be a hex sha256 digest")
	}

	item, err := s.authorizedItem(ctx, caller, signatureID)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(path, item.Signature.EventID.String()+"/") {
		return nil, domain.NewValidationError("pdf_path", "path must start with the event id")
	}

	changed, err := s.signatures.SetPDF(ctx, signatureID, path, sum)
	if err != nil {
		return nil, fmt.Errorf("set pdf pointer: %w", err)
	}
	if changed == 0 {
		current, err := s.signatures.GetByID(ctx, signatureID)
		if err != nil {
			return nil, fmt.Errorf("reload signature: %w", err)
		}
		if current == nil {
			return nil, domain.ErrSignatureNotFound
		}
		if current.PDFStoragePath == nil || current.PDFSHA256 == nil {
			return nil, fmt.Errorf("pdf pointer of %s was not recorded", signatureID)
		}
		return &PDFRecord{Path: *current.PDFStoragePath, SHA256: *current.PDFSHA256, Cached: true}, nil
	}

	if err := s.audit.Record(ctx, &domain.AuditEntry{
		ActorUserID: actorID(caller),
		Action:      domain.AuditPDFGenerated,
		EntityType:  "nda_signature",
		EntityID:    &signatureID,
		Meta:        map[string]any{"pdf_path": path, "pdf_sha256": sum},
	}); err != nil {
		s.log.Error().Err(err).Str("signature_id", signatureID.String()).Msg("Failed to record pdf audit entry")
	}

	return &PDFRecord{Path: path, SHA256: sum}, nil
}

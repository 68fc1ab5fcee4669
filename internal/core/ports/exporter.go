package ports

import (
	"io"

	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
)

// SignatureExporter writes a signature list as a downloadable document.
type SignatureExporter interface {
	Export(w io.Writer, eventName string, items []*domain.SignatureListItem) error
}

package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
)

func TestSignatureAdminService_SignedURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	sig, err := f.repos.Signatures.GetByID(ctx, res.SignatureID)
	require.NoError(t, err)

	url, err := f.admin.SignedURL(ctx, &f.crew, domain.SignaturesBucket, sig.SignatureStoragePath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "memory://signatures/"+f.event.ID.String()))

	_, err = f.admin.SignedURL(ctx, &f.outsider, domain.SignaturesBucket, sig.SignatureStoragePath)
	assert.ErrorIs(t, err, domain.ErrNoEventAccess)

	_, err = f.admin.SignedURL(ctx, &f.crew, "secrets", sig.SignatureStoragePath)
	assert.True(t, domain.IsValidation(err))

	_, err = f.admin.SignedURL(ctx, &f.crew, domain.SignaturesBucket, "not-an-event/x.png")
	assert.True(t, domain.IsValidation(err))

	_, err = f.admin.SignedURL(ctx, &f.crew, domain.SignaturesBucket, "")
	assert.ErrorIs(t, err, domain.ErrMissingFields)
}

func TestSignatureAdminService_RecordPDFCachesFirstRender(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	path := f.event.ID.String() + "/" + res.SignatureID.String() + ".pdf"
	sum := strings.Repeat("ab", 32)

	first, err := f.admin.RecordPDF(ctx, &f.crew, res.SignatureID, path, strings.ToUpper(sum))
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, sum, first.SHA256)

	second, err := f.admin.RecordPDF(ctx, &f.crew, res.SignatureID, f.event.ID.String()+"/other.pdf", strings.Repeat("cd", 32))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, path, second.Path)
	assert.Equal(t, sum, second.SHA256)

	_, err = f.admin.RecordPDF(ctx, &f.crew, res.SignatureID, path, "nothex")
	assert.True(t, domain.IsValidation(err))

	_, err = f.admin.RecordPDF(ctx, &f.crew, res.SignatureID, uuid.NewString()+"/x.pdf", sum)
	assert.True(t, domain.IsValidation(err))

	count := 0
	for _, a := range f.auditActions() {
		if a == domain.AuditPDFGenerated {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSignatureAdminService_PDFSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.signed(t)

	src, err := f.admin.PDFSource(ctx, &f.organizer, res.SignatureID)
	require.NoError(t, err)
	assert.Equal(t, testPNG, src.SignatureImage)
	assert.Equal(t, "Ola", src.Item.GuestFirstName)
	assert.Equal(t, "Taushetserklæring", src.Item.Signature.NDATextSnapshot)

	_, err = f.admin.PDFSource(ctx, &f.outsider, res.SignatureID)
	assert.ErrorIs(t, err, domain.ErrNoEventAccess)
}

func TestSignatureAdminService_ListAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signed(t)

	items, err := f.admin.ListSignatures(ctx, &f.organizer, f.event.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var buf bytes.Buffer
	require.NoError(t, f.admin.ExportSignaturesXLSX(ctx, &f.adminUser, f.event.ID, &buf))
	assert.Equal(t, "Sommerfest\nola.nordmann\n", buf.String())

	err = f.admin.ExportSignaturesXLSX(ctx, &f.outsider, f.event.ID, &buf)
	assert.ErrorIs(t, err, domain.ErrNoEventAccess)
}

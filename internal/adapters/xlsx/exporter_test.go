package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thoknuts/nda-sm-platform/internal/core/domain"
	"github.com/xuri/excelize/v2"
)

func TestExporter_Export(t *testing.T) {
	log := zerolog.Nop()
	exp := NewExporter(nil, &log)

	signed := time.Date(2026, 6, 1, 18, 30, 0, 0, time.UTC)
	verified := signed.Add(10 * time.Minute)
	items := []*domain.SignatureListItem{
		{
			Signature: domain.NdaSignature{
				Language:       domain.LanguageNo,
				SignedAt:       signed,
				VerifiedAt:     &verified,
				PrivacyVersion: 3,
			},
			GuestFirstName: "Ola",
			GuestLastName:  "Nordmann",
			GuestUsername:  "ola.nordmann",
			GuestPhone:     "+4791234567",
		},
		{
			Signature:     domain.NdaSignature{Language: domain.LanguageEn, SignedAt: signed, PrivacyVersion: 3},
			GuestUsername: "kari",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, exp.Export(&buf, "Sommerfest", items))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "Sommerfest", rows[0][0])
	assert.Equal(t, Header, rows[1])
	assert.Equal(t, []string{
		"2026-06-01 18:30", "Ola", "Nordmann", "ola.nordmann", "+4791234567",
		"no", "Verified", "2026-06-01 18:40", "3",
	}, rows[2])

	assert.Equal(t, "kari", rows[3][3])
	assert.Equal(t, "Pending", rows[3][6])
}

func TestExporter_EmptyList(t *testing.T) {
	log := zerolog.Nop()
	var buf bytes.Buffer
	require.NoError(t, NewExporter(nil, &log).Export(&buf, "Tomt", nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acuervo/mailexport/internal/mail/types"
)

func TestSplitRecipient(t *testing.T) {
	tests := []struct {
		name   string
		to     string
		local  string
		domain string
	}{
		{
			name:   "plain address",
			to:     "user@example.com",
			local:  "user",
			domain: "example.com",
		},
		{
			name:   "display name with angle brackets",
			to:     `"Jane Doe" <jane@example.com>, other@x.com`,
			local:  "jane",
			domain: "example.com",
		},
		{
			name:   "angle brackets only",
			to:     "<bob@example.org>",
			local:  "bob",
			domain: "example.org",
		},
		{
			name:   "multiple addresses uses first",
			to:     "first@a.com, second@b.com",
			local:  "first",
			domain: "a.com",
		},
		{
			name:   "no at sign keeps original as local part",
			to:     "  not-an-address  ",
			local:  "not-an-address",
			domain: "",
		},
		{
			name:   "too many at signs keeps whole string",
			to:     "a@b@c",
			local:  "a@b@c",
			domain: "",
		},
		{
			name:   "surrounding whitespace trimmed",
			to:     "  user @ example.com ",
			local:  "user",
			domain: "example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local, domain := SplitRecipient(tt.to)
			assert.Equal(t, tt.local, local)
			assert.Equal(t, tt.domain, domain)
		})
	}
}

func TestCanonicalDate(t *testing.T) {
	t.Run("valid RFC 5322 date converted to UTC", func(t *testing.T) {
		got := CanonicalDate("Mon, 15 Jan 2024 10:30:00 +0200")
		assert.Equal(t, "2024-01-15 08:30:00", got)
	})

	t.Run("unparsable date maps to sentinel", func(t *testing.T) {
		assert.Equal(t, SentinelDate, CanonicalDate("not a date"))
		assert.Equal(t, SentinelDate, CanonicalDate(""))
	})

	t.Run("round trip is stable", func(t *testing.T) {
		in := "Tue, 05 Mar 2024 23:59:59 -0500"
		canonical := CanonicalDate(in)

		parsed, err := time.Parse("2006-01-02 15:04:05", canonical)
		require.NoError(t, err)

		// Re-parsing the canonical output yields the same instant and the
		// same canonical form.
		assert.Equal(t, canonical, parsed.UTC().Format("2006-01-02 15:04:05"))
		assert.Equal(t, "2024-03-06 04:59:59", canonical)
	})
}

func TestDecodeSubject(t *testing.T) {
	t.Run("plain subject passes through", func(t *testing.T) {
		assert.Equal(t, "Quarterly report", DecodeSubject("Quarterly report"))
	})

	t.Run("encoded word decoded", func(t *testing.T) {
		assert.Equal(t, "café", DecodeSubject("=?iso-8859-1?Q?caf=E9?="))
	})

	t.Run("utf8 base64 encoded word decoded", func(t *testing.T) {
		assert.Equal(t, "✓ done", DecodeSubject("=?UTF-8?B?4pyT?= done"))
	})

	t.Run("absent subject becomes placeholder", func(t *testing.T) {
		assert.Equal(t, NoSubject, DecodeSubject(""))
		assert.Equal(t, NoSubject, DecodeSubject("   "))
	})
}

func TestRecord(t *testing.T) {
	t.Run("all fields populated", func(t *testing.T) {
		raw := types.RawMessage{
			ID: "m1",
			Headers: []types.Header{
				{Name: "To", Value: `"Jane Doe" <jane@example.com>`},
				{Name: "Date", Value: "Mon, 15 Jan 2024 10:30:00 +0000"},
				{Name: "Subject", Value: "Hello"},
			},
		}
		rec := Record(raw)
		assert.Equal(t, types.MailRecord{
			SentAt:             "2024-01-15 10:30:00",
			RecipientLocalPart: "jane",
			RecipientDomain:    "example.com",
			Subject:            "Hello",
		}, rec)
	})

	t.Run("header lookup is case insensitive, first match wins", func(t *testing.T) {
		raw := types.RawMessage{
			Headers: []types.Header{
				{Name: "TO", Value: "a@b.com"},
				{Name: "to", Value: "other@c.com"},
				{Name: "dAtE", Value: "Mon, 15 Jan 2024 10:30:00 +0000"},
			},
		}
		rec := Record(raw)
		assert.Equal(t, "a", rec.RecipientLocalPart)
		assert.Equal(t, "b.com", rec.RecipientDomain)
		assert.Equal(t, "2024-01-15 10:30:00", rec.SentAt)
	})

	t.Run("missing headers degrade to defaults, never empty", func(t *testing.T) {
		rec := Record(types.RawMessage{ID: "m2"})
		assert.Equal(t, SentinelDate, rec.SentAt)
		assert.Equal(t, NoRecipient, rec.RecipientLocalPart)
		assert.Equal(t, "", rec.RecipientDomain)
		assert.Equal(t, NoSubject, rec.Subject)
	})
}

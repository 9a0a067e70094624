// Package normalize turns raw message headers into MailRecord fields. It
// never fails: malformed input degrades to documented defaults so every
// record leaves the engine fully populated.
package normalize

import (
	"mime"
	"net/mail"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"

	"github.com/acuervo/mailexport/internal/mail/types"
)

const (
	// SentinelDate replaces timestamps that cannot be parsed, keeping the
	// sort order over SentAt total.
	SentinelDate = "1900-01-01 00:00:00"

	// NoSubject and NoRecipient fill absent headers.
	NoSubject   = "No Subject"
	NoRecipient = "No Recipient"

	timeLayout = "2006-01-02 15:04:05"
)

// addrPattern strips a display-name/angle-bracket wrapper like
// `"Jane Doe" <jane@example.com>` down to the bare address.
var addrPattern = regexp.MustCompile(`<?([^<]*@[^>]*)>?`)

var wordDecoder = mime.WordDecoder{CharsetReader: charset.Reader}

// Record extracts the normalized export row from a raw message.
func Record(raw types.RawMessage) types.MailRecord {
	to, ok := raw.Header("To")
	if !ok || strings.TrimSpace(to) == "" {
		to = NoRecipient
	}
	local, domain := SplitRecipient(to)

	date, _ := raw.Header("Date")
	subject, _ := raw.Header("Subject")

	return types.MailRecord{
		SentAt:             CanonicalDate(date),
		RecipientLocalPart: local,
		RecipientDomain:    domain,
		Subject:            DecodeSubject(subject),
	}
}

// SplitRecipient splits a To header into local-part and domain. Only the
// first of multiple comma-separated addresses is used. Anything that does
// not split into exactly two parts around "@" comes back whole as the
// local-part with an empty domain.
func SplitRecipient(to string) (local, domain string) {
	addr := strings.TrimSpace(to)
	if i := strings.Index(addr, ","); i >= 0 {
		addr = strings.TrimSpace(addr[:i])
	}

	if m := addrPattern.FindStringSubmatch(addr); m != nil {
		addr = strings.TrimSpace(m[1])
	}

	parts := strings.Split(addr, "@")
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return addr, ""
}

// CanonicalDate parses an RFC 5322 date header and reformats it as
// "YYYY-MM-DD HH:MM:SS" in UTC. Unparsable or absent dates map to
// SentinelDate. Formatting in UTC keeps parse→format stable: re-parsing the
// canonical string yields the same instant.
func CanonicalDate(header string) string {
	t, err := mail.ParseDate(strings.TrimSpace(header))
	if err != nil {
		return SentinelDate
	}
	return t.UTC().Format(timeLayout)
}

// DecodeSubject decodes MIME encoded-word subjects to plain text. Plain
// subjects pass through unchanged, absent subjects become NoSubject and a
// bad encoding falls back to the raw value.
func DecodeSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return NoSubject
	}
	decoded, err := wordDecoder.DecodeHeader(subject)
	if err != nil {
		return subject
	}
	return decoded
}

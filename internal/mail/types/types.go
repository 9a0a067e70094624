package types

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Window is a half-open date interval [Start, End). A message sent exactly
// at End 00:00:00 is excluded; callers wanting an inclusive end add one day.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Header is a single raw message header, name case preserved.
type Header struct {
	Name  string
	Value string
}

// RawMessage is the unnormalized header set of one sent message, as handed
// over by a Source before field extraction.
type RawMessage struct {
	ID      string
	Headers []Header
}

// Header returns the value of the first header matching name
// case-insensitively.
func (m RawMessage) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// MailRecord is one exported row. All fields are always non-empty: defaults
// substitute for missing data so the export never contains holes and sort
// order on SentAt is total.
type MailRecord struct {
	SentAt             string
	RecipientLocalPart string
	RecipientDomain    string
	Subject            string
}

// EmitFunc receives messages one at a time as a Source produces them.
// Returning an error stops the retrieval.
type EmitFunc func(RawMessage) error

// Source is an authenticated view over one account's sent messages.
//
// Count and Messages re-issue network calls on every invocation; results
// are finite and not restartable. Implementations differ in their failure
// guarantees: the paged-listing source retries transient listing errors and
// drops individual failing messages, while the IMAP source treats any
// transport error as fatal for the run. Per-message guarantees are
// documented on each implementation.
type Source interface {
	// Count reports the number of sent messages inside w.
	Count(ctx context.Context, w Window) (int, error)
	// Messages streams the raw header sets of all sent messages inside w.
	Messages(ctx context.Context, w Window, emit EmitFunc) error
	// Close releases the underlying session.
	Close() error
}

// SortRecords orders records by SentAt, ascending unless descending is set.
// The canonical timestamp form sorts lexicographically in date order.
func SortRecords(records []MailRecord, descending bool) {
	sort.SliceStable(records, func(i, j int) bool {
		if descending {
			return records[i].SentAt > records[j].SentAt
		}
		return records[i].SentAt < records[j].SentAt
	})
}

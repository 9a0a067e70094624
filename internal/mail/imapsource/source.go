// Package imapsource retrieves sent messages over a stateful IMAP session.
//
// This is the weaker of the two retrieval strategies: the date search runs
// once, there is no per-message retry, and any transport failure is fatal
// for the run.
package imapsource

import (
	"context"
	"fmt"
	"strconv"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"go.uber.org/zap"

	"github.com/acuervo/mailexport/internal/mail/types"
)

// DefaultMailbox is where Gmail keeps sent messages over IMAP.
const DefaultMailbox = "[Gmail]/Sent Mail"

// client is the slice of the IMAP connection the source needs.
type client interface {
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// Source is the stateful session/full-download retrieval strategy.
type Source struct {
	c       client
	mailbox string
	log     *zap.SugaredLogger
}

// Dial connects over TLS and logs in with the account's app password.
func Dial(addr, username, password, mailbox string, log *zap.SugaredLogger) (*Source, error) {
	c, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	if err := c.Login(username, password); err != nil {
		return nil, fmt.Errorf("logging in %s: %w", username, err)
	}
	return New(c, mailbox, log), nil
}

// New wraps an established session. Used directly by tests.
func New(c client, mailbox string, log *zap.SugaredLogger) *Source {
	if mailbox == "" {
		mailbox = DefaultMailbox
	}
	return &Source{c: c, mailbox: mailbox, log: log}
}

func criteriaFor(w types.Window) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	// SENTSINCE/SENTBEFORE filter on the Date header at day granularity,
	// matching the end-exclusive window convention.
	criteria.SentSince = w.Start
	criteria.SentBefore = w.End
	return criteria
}

func (s *Source) search(w types.Window) ([]uint32, error) {
	if _, err := s.c.Select(s.mailbox, true); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", s.mailbox, err)
	}
	ids, err := s.c.Search(criteriaFor(w))
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.mailbox, err)
	}
	return ids, nil
}

// Count selects the sent mailbox and counts search matches.
func (s *Source) Count(ctx context.Context, w types.Window) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ids, err := s.search(w)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Messages fetches the header section of every matched message and emits
// it. Messages whose headers cannot be parsed are logged and dropped;
// fetch transport errors abort the whole run.
func (s *Source) Messages(ctx context.Context, w types.Window, emit types.EmitFunc) error {
	ids, err := s.search(w)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.c.Fetch(seqset, items, messages)
	}()

	// One message at a time; the emit callback is the caller's suspend
	// point.
	var emitErr error
	for msg := range messages {
		if emitErr != nil || ctx.Err() != nil {
			continue // drain so the fetch goroutine can finish
		}
		raw, err := headersOf(msg, section)
		if err != nil {
			s.log.Errorw("parsing message headers failed, dropping it",
				"seq", msg.SeqNum,
				"error", err)
			continue
		}
		emitErr = emit(raw)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("fetching messages: %w", err)
	}
	if emitErr != nil {
		return emitErr
	}
	return ctx.Err()
}

// Close logs the session out.
func (s *Source) Close() error {
	return s.c.Logout()
}

func headersOf(msg *imap.Message, section *imap.BodySectionName) (types.RawMessage, error) {
	body := msg.GetBody(section)
	if body == nil {
		return types.RawMessage{}, fmt.Errorf("no header section in fetch response")
	}

	ent, err := message.Read(body)
	if err != nil && !message.IsUnknownCharset(err) {
		return types.RawMessage{}, err
	}

	raw := types.RawMessage{ID: strconv.FormatUint(uint64(msg.SeqNum), 10)}
	fields := ent.Header.Fields()
	for fields.Next() {
		raw.Headers = append(raw.Headers, types.Header{
			Name:  fields.Key(),
			Value: fields.Value(),
		})
	}
	return raw, nil
}

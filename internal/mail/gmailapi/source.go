// Package gmailapi retrieves sent messages through the Gmail REST API using
// bounded listing pages and opaque continuation tokens.
package gmailapi

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"

	"github.com/acuervo/mailexport/internal/mail/types"
)

const (
	user      = "me"
	msgFormat = "metadata"

	// DefaultPageSize caps message ids per listing call. 500 is the
	// maximum the API accepts.
	DefaultPageSize int64 = 500

	// DefaultListRetries bounds attempts for one listing call, with
	// DefaultRetryDelay between attempts.
	DefaultListRetries = 3
	DefaultRetryDelay  = time.Second

	// DefaultPageDelay is a courtesy pause between successive pages to
	// stay clear of server-side throttling. Tunable, not a contract.
	DefaultPageDelay = 100 * time.Millisecond
)

var metadataHeaders = []string{"To", "Date", "Subject"}

// Options tunes pagination and retry behaviour. Zero values fall back to
// the package defaults.
type Options struct {
	PageSize    int64
	ListRetries int
	RetryDelay  time.Duration
	PageDelay   time.Duration
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.ListRetries <= 0 {
		o.ListRetries = DefaultListRetries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.PageDelay <= 0 {
		o.PageDelay = DefaultPageDelay
	}
	return o
}

// api is the narrow slice of the Gmail service the source needs.
type api interface {
	listPage(ctx context.Context, query, pageToken string, pageSize int64) (*gmail.ListMessagesResponse, error)
	getMessage(ctx context.Context, id string) (*gmail.Message, error)
}

type gmailAPI struct {
	svc *gmail.Service
}

func (g gmailAPI) listPage(ctx context.Context, query, pageToken string, pageSize int64) (*gmail.ListMessagesResponse, error) {
	return g.svc.Users.Messages.List(user).
		Q(query).
		MaxResults(pageSize).
		PageToken(pageToken).
		Context(ctx).
		Do()
}

func (g gmailAPI) getMessage(ctx context.Context, id string) (*gmail.Message, error) {
	return g.svc.Users.Messages.Get(user, id).
		Format(msgFormat).
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
}

// Source is the paged-listing retrieval strategy. Transient listing
// failures are retried up to Options.ListRetries; individual message
// fetches are not retried, a failing message is logged and dropped.
type Source struct {
	api  api
	opts Options
	log  *zap.SugaredLogger
}

// New wraps an authenticated Gmail service.
func New(svc *gmail.Service, opts Options, log *zap.SugaredLogger) *Source {
	return newSource(gmailAPI{svc: svc}, opts, log)
}

func newSource(a api, opts Options, log *zap.SugaredLogger) *Source {
	return &Source{api: a, opts: opts.withDefaults(), log: log}
}

// Query builds the sent-mail search string for w. The after:/before:
// convention is day-granular and end-exclusive.
func Query(w types.Window) string {
	const day = "2006/01/02"
	return fmt.Sprintf("in:sent after:%s before:%s", w.Start.Format(day), w.End.Format(day))
}

// Count pages through the listing and sums message ids, applying the same
// retry policy as Messages.
func (s *Source) Count(ctx context.Context, w types.Window) (int, error) {
	query := Query(w)
	total := 0
	pageToken := ""
	for {
		page, err := s.listWithRetry(ctx, query, pageToken)
		if err != nil {
			return 0, err
		}
		total += len(page.Messages)
		pageToken = page.NextPageToken
		if pageToken == "" || len(page.Messages) == 0 {
			return total, nil
		}
		if err := s.pause(ctx, s.opts.PageDelay); err != nil {
			return 0, err
		}
	}
}

// Messages walks listing pages and emits one raw message per id. A
// per-message fetch failure drops that message from the result set;
// completeness therefore does not equal "no errors logged".
func (s *Source) Messages(ctx context.Context, w types.Window, emit types.EmitFunc) error {
	query := Query(w)
	pageToken := ""
	for {
		page, err := s.listWithRetry(ctx, query, pageToken)
		if err != nil {
			return err
		}
		if len(page.Messages) == 0 {
			return nil
		}

		for _, m := range page.Messages {
			msg, err := s.api.getMessage(ctx, m.Id)
			if err != nil {
				s.log.Errorw("fetching message failed, dropping it",
					"id", m.Id,
					"error", err)
				continue
			}
			if err := emit(rawMessage(msg)); err != nil {
				return err
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			return nil
		}
		if err := s.pause(ctx, s.opts.PageDelay); err != nil {
			return err
		}
	}
}

// Close is a no-op; the HTTP client owns no persistent connection state
// worth tearing down.
func (s *Source) Close() error { return nil }

func (s *Source) listWithRetry(ctx context.Context, query, pageToken string) (*gmail.ListMessagesResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.ListRetries; attempt++ {
		page, err := s.api.listPage(ctx, query, pageToken, s.opts.PageSize)
		if err == nil {
			return page, nil
		}
		lastErr = err
		s.log.Warnw("listing messages failed",
			"attempt", attempt,
			"error", err)
		if attempt < s.opts.ListRetries {
			if err := s.pause(ctx, s.opts.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("listing messages after %d attempts: %w", s.opts.ListRetries, lastErr)
}

func (s *Source) pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func rawMessage(msg *gmail.Message) types.RawMessage {
	raw := types.RawMessage{ID: msg.Id}
	if msg.Payload == nil {
		return raw
	}
	for _, h := range msg.Payload.Headers {
		raw.Headers = append(raw.Headers, types.Header{Name: h.Name, Value: h.Value})
	}
	return raw
}

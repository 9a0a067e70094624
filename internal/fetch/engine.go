// Package fetch drives a mail source through one retrieval: probe the
// total, stream messages, normalize each one and report progress.
package fetch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/acuervo/mailexport/internal/mail/normalize"
	"github.com/acuervo/mailexport/internal/mail/types"
)

// ProgressFunc observes retrieval progress after each record. total is the
// pre-fetch probe result; current never exceeds it unless the mailbox
// changed underneath the run.
type ProgressFunc func(current, total int)

type Engine struct {
	src types.Source
	log *zap.SugaredLogger
}

func New(src types.Source, log *zap.SugaredLogger) *Engine {
	return &Engine{src: src, log: log}
}

// Records retrieves and normalizes every sent message in w, sorted by
// SentAt (descending if requested). Messages the source dropped are simply
// absent from the result; the caller must not assume completeness equals
// "no errors logged".
func (e *Engine) Records(ctx context.Context, w types.Window, descending bool, progress ProgressFunc) ([]types.MailRecord, error) {
	total, err := e.src.Count(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}
	e.log.Infow("messages in window",
		"total", total,
		"start", w.Start.Format("2006-01-02"),
		"end", w.End.Format("2006-01-02"))

	var records []types.MailRecord
	err = e.src.Messages(ctx, w, func(raw types.RawMessage) error {
		records = append(records, normalize.Record(raw))
		if progress != nil {
			progress(len(records), total)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("retrieving messages: %w", err)
	}

	types.SortRecords(records, descending)
	return records, nil
}

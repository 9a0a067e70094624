// Package batch runs one full retrieval-then-export cycle per account,
// strictly sequentially. A fatal condition for one account never aborts the
// others; the summary carries per-account outcomes.
package batch

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/acuervo/mailexport/internal/account"
	"github.com/acuervo/mailexport/internal/export"
	"github.com/acuervo/mailexport/internal/fetch"
	"github.com/acuervo/mailexport/internal/mail/types"
)

// SourceOpener authenticates one account and hands back a mail source.
type SourceOpener interface {
	Open(ctx context.Context, acct account.Account) (types.Source, error)
}

// Sink writes the final ordered record collection.
type Sink interface {
	Write(records []types.MailRecord, destination, accountLabel string) error
}

// AccountDirectory is the read side of the account store.
type AccountDirectory interface {
	Details(address string) (account.Account, bool)
}

// Result is the outcome for one account.
type Result struct {
	Address string
	Records int
	File    string
	Err     error
}

// Summary collects per-account results for the final report.
type Summary struct {
	Results []Result
}

func (s Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.Err == nil {
			n++
		}
	}
	return n
}

func (s Summary) Failed() int { return len(s.Results) - s.Succeeded() }

// Runner wires the per-account pipeline.
type Runner struct {
	accounts   AccountDirectory
	opener     SourceOpener
	sink       Sink
	exportsDir string
	descending bool
	log        *zap.SugaredLogger
}

func NewRunner(accounts AccountDirectory, opener SourceOpener, sink Sink, exportsDir string, descending bool, log *zap.SugaredLogger) *Runner {
	return &Runner{
		accounts:   accounts,
		opener:     opener,
		sink:       sink,
		exportsDir: exportsDir,
		descending: descending,
		log:        log,
	}
}

// Run processes the addresses in order, one full cycle each, and reports
// the outcome per account.
func (r *Runner) Run(ctx context.Context, addresses []string, w types.Window, progress fetch.ProgressFunc) Summary {
	var summary Summary
	for _, address := range addresses {
		result := r.runOne(ctx, address, w, progress)
		if result.Err != nil {
			r.log.Errorw("account export failed",
				"address", address,
				"error", result.Err)
		}
		summary.Results = append(summary.Results, result)
	}

	r.log.Infow("batch finished",
		"accounts", len(summary.Results),
		"succeeded", summary.Succeeded(),
		"failed", summary.Failed())
	return summary
}

func (r *Runner) runOne(ctx context.Context, address string, w types.Window, progress fetch.ProgressFunc) Result {
	result := Result{Address: address}

	acct, ok := r.accounts.Details(address)
	if !ok {
		result.Err = fmt.Errorf("%w: %s", account.ErrUnknownAccount, address)
		return result
	}

	src, err := r.opener.Open(ctx, acct)
	if err != nil {
		result.Err = err
		return result
	}
	defer func() {
		if err := src.Close(); err != nil {
			r.log.Warnw("closing session failed", "address", address, "error", err)
		}
	}()

	records, err := fetch.New(src, r.log).Records(ctx, w, r.descending, progress)
	if err != nil {
		result.Err = err
		return result
	}
	result.Records = len(records)

	destination := filepath.Join(r.exportsDir, export.FileName(address, w))
	if err := r.sink.Write(records, destination, address); err != nil {
		result.Err = fmt.Errorf("exporting %s: %w", address, err)
		return result
	}
	result.File = destination
	return result
}

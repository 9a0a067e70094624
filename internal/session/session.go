// Package session resolves a registered account into an authenticated mail
// source, picking the retrieval strategy by auth method. Configuration
// errors (unknown account, missing secret) surface here, before any
// network I/O.
package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/acuervo/mailexport/internal/account"
	"github.com/acuervo/mailexport/internal/config"
	"github.com/acuervo/mailexport/internal/gauth"
	"github.com/acuervo/mailexport/internal/mail/gmailapi"
	"github.com/acuervo/mailexport/internal/mail/imapsource"
	"github.com/acuervo/mailexport/internal/mail/types"
)

// ErrMissingSecret means a direct-secret account has no resolvable app
// password; the caller must re-add the account.
var ErrMissingSecret = errors.New("missing secret for account")

// SecretGetter resolves a stored secret reference.
type SecretGetter interface {
	Get(key string) (string, error)
}

// Opener authenticates accounts and hands out sources.
type Opener struct {
	fetch     config.FetchConfig
	delegated *gauth.Provider
	secrets   SecretGetter
	log       *zap.SugaredLogger
}

func NewOpener(fetch config.FetchConfig, delegated *gauth.Provider, secrets SecretGetter, log *zap.SugaredLogger) *Opener {
	return &Opener{fetch: fetch, delegated: delegated, secrets: secrets, log: log}
}

// Open establishes a working session for the account. Failures here are
// authentication/session errors: fatal for this account, recoverable for a
// batch.
func (o *Opener) Open(ctx context.Context, acct account.Account) (types.Source, error) {
	switch acct.AuthMethod {
	case account.AuthDelegated:
		svc, err := o.delegated.Service(ctx, acct.Address)
		if err != nil {
			return nil, fmt.Errorf("authenticating %s: %w", acct.Address, err)
		}
		opts := gmailapi.Options{
			PageSize:    o.fetch.PageSize,
			ListRetries: o.fetch.ListRetries,
			RetryDelay:  o.fetch.RetryDelay,
			PageDelay:   o.fetch.PageDelay,
		}
		return gmailapi.New(svc, opts, o.log), nil

	case account.AuthDirectSecret:
		if acct.SecretRef == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingSecret, acct.Address)
		}
		secret, err := o.secrets.Get(acct.SecretRef)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingSecret, acct.Address)
		}
		src, err := imapsource.Dial(o.fetch.IMAPAddr, acct.Address, secret, o.fetch.SentMailbox, o.log)
		if err != nil {
			return nil, fmt.Errorf("authenticating %s: %w", acct.Address, err)
		}
		return src, nil

	default:
		return nil, fmt.Errorf("%w: %s", account.ErrInvalidMethod, acct.AuthMethod)
	}
}

// Package gauth is the delegated credential provider: it turns a client
// secret plus a per-address cached token into an authenticated Gmail
// service. Token refresh is the oauth2 transport's concern; this package
// only persists what the flow hands back.
package gauth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Provider caches one token file per address under tokensDir.
type Provider struct {
	credentialsFile string
	tokensDir       string
	log             *zap.SugaredLogger
}

func NewProvider(credentialsFile, tokensDir string, log *zap.SugaredLogger) *Provider {
	return &Provider{credentialsFile: credentialsFile, tokensDir: tokensDir, log: log}
}

// TokenPath is the cached-token location for an address. Removing this file
// forces a fresh authorization on the next run.
func (p *Provider) TokenPath(address string) string {
	name := fmt.Sprintf("token_%s.json", strings.ReplaceAll(address, "@", "_at_"))
	return filepath.Join(p.tokensDir, name)
}

// Service builds an authenticated Gmail service for the address, running
// the interactive authorization-code flow if no token is cached yet.
func (p *Provider) Service(ctx context.Context, address string) (*gmail.Service, error) {
	b, err := os.ReadFile(p.credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}
	config, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret file: %w", err)
	}

	tokenFile := p.TokenPath(address)
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
		p.log.Infow("token cached", "address", address, "file", tokenFile)
	}

	client := config.Client(ctx, tok)
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return svc, nil
}

func tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("reading authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("caching oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

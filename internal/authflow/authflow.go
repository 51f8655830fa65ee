// Package authflow drives the OAuth2 installed-app flow against Gmail and
// persists the resulting token to token.json, generalizing the teacher
// adapter's TokenManager/ExchangeToken/RefreshToken trio
// (adapter/out/provider/worker_gmail_adapter.go) from a web-redirect flow
// to the CLI's out-of-band manual-code flow (spec §6 "auth").
package authflow

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/apperr"
	"github.com/victor-bajanov/gmail-cleanup-automation/pkg/atomicfile"
)

// Scopes requested for the cleanup pipeline: read message metadata, manage
// labels, and manage filters. Sending/deleting mail is never requested
// (spec §9 Non-goal: never deletes mail, only relabels/archives).
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailLabelsScope,
	gmail.GmailSettingsBasicScope,
}

// Config holds the OAuth client credentials, loaded from the environment
// (spec §6: GMAIL_CLEANUP_CLIENT_ID / GMAIL_CLEANUP_CLIENT_SECRET, or a
// .env file read via godotenv in cmd/gmailsweep).
type Config struct {
	ClientID     string
	ClientSecret string
	TokenPath    string
}

func (c Config) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// AuthURL returns the URL the user visits to authorize the application.
func (c Config) AuthURL() string {
	return c.oauthConfig().AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeAndPersist exchanges an authorization code for a token and
// writes it to TokenPath with 0600 permissions (spec §6).
func (c Config) ExchangeAndPersist(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := c.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Authentication("exchange authorization code", err)
	}
	if err := c.persist(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

func (c Config) persist(tok *oauth2.Token) error {
	if err := atomicfile.WriteJSON(c.TokenPath, tok, 0o600); err != nil {
		return apperr.Internal("persist token.json", err)
	}
	return nil
}

// Load reads the persisted token, refreshing it if needed, and returns a
// TokenSource that keeps it fresh and re-persists it whenever the
// underlying library rotates the refresh token.
func (c Config) Load(ctx context.Context) (oauth2.TokenSource, error) {
	if !atomicfile.Exists(c.TokenPath) {
		return nil, apperr.Authentication("no token.json found, run `gmailsweep auth` first", nil)
	}
	var tok oauth2.Token
	if err := atomicfile.ReadJSON(c.TokenPath, &tok); err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Authentication("no token.json found, run `gmailsweep auth` first", err)
		}
		return nil, apperr.CorruptState(c.TokenPath, err)
	}

	base := c.oauthConfig().TokenSource(ctx, &tok)
	return &persistingSource{base: base, cfg: c, last: &tok}, nil
}

// persistingSource wraps an oauth2.TokenSource and re-persists the token
// to disk whenever the library hands back a freshly refreshed one, so a
// refresh performed mid-run survives process restart.
type persistingSource struct {
	base oauth2.TokenSource
	cfg  Config
	last *oauth2.Token
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, apperr.Authentication("refresh access token; re-run `gmailsweep auth`", err)
	}
	if tok.AccessToken != p.last.AccessToken || tok.RefreshToken != p.last.RefreshToken {
		if perr := p.cfg.persist(tok); perr != nil {
			return nil, perr
		}
		p.last = tok
	}
	return tok, nil
}

// Validate performs a cheap authenticated call to confirm the token works
// and the required scopes were granted.
func Validate(ctx context.Context, ts oauth2.TokenSource) error {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return apperr.Internal("construct validation client", err)
	}
	if _, err := svc.Users.GetProfile("me").Context(ctx).Do(); err != nil {
		return apperr.Authentication(fmt.Sprintf("token validation failed: %v", err), err)
	}
	return nil
}

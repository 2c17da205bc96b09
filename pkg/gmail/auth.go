// Package gmail wraps the Gmail API: OAuth2 auth, paged search, message
// fetch, and history-based incremental sync.
package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Authenticate builds an authorized Gmail service from an OAuth2 client
// credentials file and a cached token. When no valid token is cached it runs
// the out-of-band console flow: prints the consent URL and reads the code
// from stdin.
func Authenticate(ctx context.Context, credentialsFile, tokenFile string) (*gmailv1.Service, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, eris.Wrapf(err, "gmail: read credentials file %s", credentialsFile)
	}

	oauthCfg, err := google.ConfigFromJSON(raw, gmailv1.GmailReadonlyScope)
	if err != nil {
		return nil, eris.Wrap(err, "gmail: parse oauth credentials")
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = tokenFromConsole(ctx, oauthCfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}

	svc, err := gmailv1.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, eris.Wrap(err, "gmail: create service")
	}
	return svc, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, eris.Wrapf(err, "gmail: decode token file %s", path)
	}
	return tok, nil
}

func tokenFromConsole(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	url := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following URL in a browser, then paste the authorization code:\n%s\n> ", url)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, eris.Wrap(err, "gmail: read authorization code")
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, eris.Wrap(err, "gmail: exchange authorization code")
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return eris.Wrapf(err, "gmail: create token file %s", path)
	}
	defer f.Close()
	return eris.Wrap(json.NewEncoder(f).Encode(tok), "gmail: write token")
}

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"

	"golang.org/x/oauth2"
)

// authorize runs the browser-based authorization flow: listen on a random
// localhost port, print the consent URL, wait for the provider to redirect
// back with an authorization code, and exchange the code for a token.
func authorize(ctx context.Context, cfg *oauth2.Config, label string, out io.Writer) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting callback listener: %w", err)
	}
	defer ln.Close()

	// Copy so the caller's config keeps its original redirect URL.
	flowCfg := *cfg
	flowCfg.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)
	send := func(res result) {
		select {
		case results <- res:
		default:
		}
	}

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			// Browsers also hit the listener for favicons and the like;
			// only a request carrying code or error is the redirect.
			if q.Get("code") == "" && q.Get("error") == "" {
				http.NotFound(w, r)
				return
			}
			switch {
			case q.Get("state") != state:
				http.Error(w, "state mismatch", http.StatusBadRequest)
				send(result{err: fmt.Errorf("authorization state mismatch")})
			case q.Get("error") != "":
				fmt.Fprintln(w, "Authorization failed. You can close this window.")
				send(result{err: fmt.Errorf("authorization refused: %s", q.Get("error"))})
			default:
				fmt.Fprintln(w, "Authorization complete. You can close this window.")
				send(result{code: q.Get("code")})
			}
		}),
	}
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	authURL := flowCfg.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Fprintf(out, "Authorize the %s account by opening this URL in your browser:\n\n  %s\n\n", label, authURL)

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-results:
	}
	if res.err != nil {
		return nil, res.err
	}

	tok, err := flowCfg.Exchange(ctx, res.code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

package auth

import (
	"fmt"
	"html"
	"net/http"

	"github.com/rocket-approval/mortgage-agent/internal/logger"
)

// Result is delivered once per callback request.
type Result struct {
	UserID string
	Err    error
}

// CallbackHandler finishes the authorization code flow on the redirect URL.
func (p *Provider) CallbackHandler(results chan<- Result) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		var res Result
		switch {
		case query.Get("error") != "":
			res.Err = fmt.Errorf("authorization denied: %s", query.Get("error"))
		case query.Get("code") == "" || query.Get("state") == "":
			res.Err = fmt.Errorf("callback is missing code or state")
		default:
			res.UserID, _, res.Err = p.Complete(r.Context(), query.Get("state"), query.Get("code"))
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if res.Err != nil {
			logger.Error("OAuth callback failed: %v", res.Err)
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "<p>Sign-in failed: %s</p>", html.EscapeString(res.Err.Error()))
		} else {
			fmt.Fprint(w, "<p>Signed in. You can close this window and return to the terminal.</p>")
		}

		select {
		case results <- res:
		default:
		}
	})
}

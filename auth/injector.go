package auth

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/jrsteele09/go-analytics-client/dispatch"
	"golang.org/x/oauth2"
)

const tokenTypeBearer = "Bearer"

// Injector attaches the stored access credential to outbound calls as a
// bearer Authorization header. A missing credential is not an error: the
// call goes out unmodified and the remote service decides.
type Injector struct {
	store credentials.Store
}

func NewInjector(store credentials.Store) *Injector {
	return &Injector{store: store}
}

// BeforeSend is the dispatch hook. Public calls (login, signup, token
// refresh) never carry a credential.
func (i *Injector) BeforeSend(ctx context.Context, call *dispatch.Call, req *http.Request) error {
	if call.Public {
		call.SetSentAccess("")
		return nil
	}

	access := i.store.Access(ctx)
	call.SetSentAccess(access)
	if access == "" {
		req.Header.Del("Authorization")
		return nil
	}

	tok := &oauth2.Token{AccessToken: access, TokenType: tokenTypeBearer}
	tok.SetAuthHeader(req)
	return nil
}

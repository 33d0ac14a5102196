// Package sessions owns the signed-in state: it establishes a session from
// login or signup, ends it on logout, and tears it down when the credential
// refresh protocol gives up.
package sessions

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jrsteele09/go-analytics-client/apimodel"
	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/jrsteele09/go-analytics-client/dispatch"
	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
	"github.com/rs/zerolog/log"
)

// Doer sends a call through the full pipeline.
type Doer interface {
	Do(ctx context.Context, call *dispatch.Call) (*dispatch.Response, error)
}

// Listener is notified when the session is torn down involuntarily.
type Listener func(reason error)

type Controller struct {
	store credentials.Store
	doer  Doer

	mu        sync.Mutex
	listeners []Listener
}

func NewController(store credentials.Store, doer Doer) *Controller {
	return &Controller{store: store, doer: doer}
}

// Login exchanges username and password for a credential pair and persists
// it together with the user's identity.
func (c *Controller) Login(ctx context.Context, username, password string) (*apimodel.AuthResponse, error) {
	call, err := dispatch.NewJSONCall(http.MethodPost, apimodel.RouteLogin, apimodel.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.doer.Do(ctx, call.AsPublic())
	if err != nil {
		switch dispatch.StatusCode(err) {
		case http.StatusUnauthorized, http.StatusBadRequest:
			return nil, fmt.Errorf("[sessions Login] %w: %w", apperrors.ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("[sessions Login] %w", err)
	}

	auth, err := c.establish(ctx, resp, &credentials.Identity{Username: username})
	if err != nil {
		return nil, fmt.Errorf("[sessions Login] %w", err)
	}
	log.Info().Str("username", username).Msg("Logged in")
	return auth, nil
}

// Signup registers a new account. The service signs the new user in
// straight away, so a successful signup also establishes a session.
func (c *Controller) Signup(ctx context.Context, username, email, password string) (*apimodel.AuthResponse, error) {
	call, err := dispatch.NewJSONCall(http.MethodPost, apimodel.RouteSignup, apimodel.SignupRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.doer.Do(ctx, call.AsPublic())
	if err != nil {
		switch dispatch.StatusCode(err) {
		case http.StatusBadRequest, http.StatusConflict:
			return nil, fmt.Errorf("[sessions Signup] %w: %w", apperrors.ErrRegistrationConflict, err)
		}
		return nil, fmt.Errorf("[sessions Signup] %w", err)
	}

	auth, err := c.establish(ctx, resp, &credentials.Identity{Username: username, Email: email})
	if err != nil {
		return nil, fmt.Errorf("[sessions Signup] %w", err)
	}
	log.Info().Str("username", username).Msg("Signed up")
	return auth, nil
}

func (c *Controller) establish(ctx context.Context, resp *dispatch.Response, fallback *credentials.Identity) (*apimodel.AuthResponse, error) {
	var auth apimodel.AuthResponse
	if err := resp.Decode(&auth); err != nil {
		return nil, err
	}
	if auth.Access == "" || auth.Refresh == "" {
		return nil, fmt.Errorf("%w: missing credentials in %s response", apperrors.ErrUnexpected, resp.Call.Endpoint)
	}

	if auth.User == nil {
		auth.User = identityFromAccess(auth.Access, fallback)
	}
	if err := c.store.Save(ctx, auth.Access, auth.Refresh, auth.User); err != nil {
		return nil, err
	}
	return &auth, nil
}

// identityFromAccess fills the user id from the access credential's claims
// when the service did not return a user summary.
func identityFromAccess(access string, fallback *credentials.Identity) *credentials.Identity {
	id := credentials.CloneIdentity(fallback)
	claims, err := credentials.ParseAccessClaims(access)
	if err != nil {
		log.Debug().Err(err).Msg("Access credential claims unreadable")
		return id
	}
	if userID, ok := claims.User(); ok {
		id.ID = userID
	}
	return id
}

// Logout asks the service to revoke the refresh credential and clears local
// state. A failed revocation is logged, never returned: logging out always
// succeeds locally.
func (c *Controller) Logout(ctx context.Context) error {
	if refreshToken := c.store.Refresh(ctx); refreshToken != "" && c.store.Access(ctx) != "" {
		call, err := dispatch.NewJSONCall(http.MethodPost, apimodel.RouteLogout, apimodel.LogoutRequest{RefreshToken: refreshToken})
		if err == nil {
			_, err = c.doer.Do(ctx, call)
		}
		if err != nil {
			log.Warn().Err(err).Msg("Remote logout failed, clearing local session anyway")
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("[sessions Logout] %w", err)
	}
	log.Info().Msg("Logged out")
	return nil
}

// IsAuthenticated reports whether an access credential is held. It does not
// check whether the service would still accept it.
func (c *Controller) IsAuthenticated(ctx context.Context) bool {
	return c.store.Access(ctx) != ""
}

func (c *Controller) CurrentUser(ctx context.Context) *credentials.Identity {
	return c.store.Identity(ctx)
}

// OnInvalidated registers l to run whenever the session is invalidated.
// Listeners run synchronously in registration order.
func (c *Controller) OnInvalidated(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Invalidate clears the session and notifies listeners. The refresh
// coordinator calls it when a refresh fails for good.
func (c *Controller) Invalidate(ctx context.Context, reason error) {
	if err := c.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear credential store on invalidation")
	}
	log.Warn().Err(reason).Msg("Session invalidated")

	c.mu.Lock()
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		notify(l, reason)
	}
}

func notify(l Listener, reason error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("Invalidation listener panicked")
		}
	}()
	l(reason)
}

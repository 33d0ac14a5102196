package refresh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-analytics-client/apimodel"
	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/jrsteele09/go-analytics-client/dispatch"
	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrNoRefreshCredential is the teardown cause when there is nothing to
// refresh with.
var ErrNoRefreshCredential = errors.New("no refresh credential")

// Sender performs a single exchange without running AfterReceive hooks, so a
// resend is never intercepted a second time.
type Sender interface {
	Send(ctx context.Context, call *dispatch.Call) (*dispatch.Response, error)
}

// Invalidator is told when the session cannot be recovered.
type Invalidator interface {
	Invalidate(ctx context.Context, reason error)
}

// Stats counts what the coordinator has done since it was created.
type Stats struct {
	Refreshes int64 // refresh calls sent to the service
	Failures  int64 // refreshes that ended in teardown
	Joined    int64 // failed calls that waited on a refresh another call started
	Reused    int64 // failed calls resent with a credential refreshed meanwhile
	Resent    int64 // calls resent after a refresh
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithEndpoint overrides the token refresh route.
func WithEndpoint(endpoint string) Option {
	return func(c *Coordinator) { c.endpoint = endpoint }
}

func WithInvalidator(inv Invalidator) Option {
	return func(c *Coordinator) { c.invalidator = inv }
}

// Coordinator recovers calls rejected with 401. Each call is refreshed at
// most once, and concurrent rejections share one refresh.
//
// Per call the states are:
//
//	SENT -> FAILED_AUTH -> REFRESHING -> RETRIED    (refresh succeeded, call resent)
//	                                  -> TERMINAL   (refresh failed, session torn down)
//	SENT -> TERMINAL                                 (any other status, or already retried)
type Coordinator struct {
	store       credentials.Store
	sender      Sender
	invalidator Invalidator
	endpoint    string

	// flights dedupes refreshes by the rejected credential; mu serialises the
	// refresh calls themselves so at most one is ever on the wire.
	flights singleflight.Group
	mu      sync.Mutex

	refreshes, failures, joined, reused, resent atomic.Int64
}

func NewCoordinator(store credentials.Store, sender Sender, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		sender:   sender,
		endpoint: apimodel.RouteTokenRefresh,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetInvalidator wires the session teardown target after construction.
func (c *Coordinator) SetInvalidator(inv Invalidator) {
	c.invalidator = inv
}

// AfterReceive is the dispatch hook implementing the protocol.
func (c *Coordinator) AfterReceive(ctx context.Context, resp *dispatch.Response) (*dispatch.Response, error) {
	call := resp.Call
	if resp.StatusCode != http.StatusUnauthorized || call.Public {
		return resp, nil
	}

	// A call gets one refresh. A second 401 after a resend is final.
	if !call.MarkRetried() {
		log.Debug().Str("request_id", call.ID).Str("endpoint", call.Endpoint).Msg("Rejected after retry, not refreshing again")
		return resp, nil
	}

	if err := c.awaitRefresh(ctx, call.SentAccess()); err != nil {
		return nil, err
	}

	c.resent.Add(1)
	return c.sender.Send(ctx, call)
}

// Stats returns a snapshot of the counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Refreshes: c.refreshes.Load(),
		Failures:  c.failures.Load(),
		Joined:    c.joined.Load(),
		Reused:    c.reused.Load(),
		Resent:    c.resent.Load(),
	}
}

// awaitRefresh makes sure the stored access credential is newer than stale,
// joining an in-flight refresh when there is one.
func (c *Coordinator) awaitRefresh(ctx context.Context, stale string) error {
	// The shared refresh must outlive any one caller giving up.
	flightCtx := context.WithoutCancel(ctx)
	leader := false
	ch := c.flights.DoChan(stale, func() (any, error) {
		leader = true
		return nil, c.refreshOnce(flightCtx, stale)
	})

	select {
	case res := <-ch:
		if !leader {
			c.joined.Add(1)
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) refreshOnce(ctx context.Context, stale string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.store.Access(ctx)
	if current != "" && current != stale {
		c.reused.Add(1)
		return nil
	}

	refreshToken := c.store.Refresh(ctx)
	if refreshToken == "" {
		if stale != "" && current == "" {
			// Torn down by an earlier refresh after this call was sent.
			log.Debug().Msg("Session already ended, not refreshing")
			return fmt.Errorf("[refresh Coordinator] %w: %w", apperrors.ErrRefreshFailed, ErrNoRefreshCredential)
		}
		return c.teardown(ctx, ErrNoRefreshCredential)
	}

	c.refreshes.Add(1)
	log.Debug().Str("endpoint", c.endpoint).Msg("Refreshing access credential")

	call, err := dispatch.NewJSONCall(http.MethodPost, c.endpoint, apimodel.RefreshRequest{Refresh: refreshToken})
	if err != nil {
		return c.teardown(ctx, err)
	}
	resp, err := c.sender.Send(ctx, call.AsPublic())
	if err != nil {
		return c.teardown(ctx, err)
	}
	if !resp.OK() {
		return c.teardown(ctx, dispatch.NewStatusError(resp))
	}

	var out apimodel.RefreshResponse
	if err := resp.Decode(&out); err != nil {
		return c.teardown(ctx, err)
	}
	if out.Access == "" {
		return c.teardown(ctx, fmt.Errorf("%w: refresh response without access credential", apperrors.ErrUnexpected))
	}

	if out.Refresh != "" {
		// The service rotated the refresh credential.
		err = c.store.Save(ctx, out.Access, out.Refresh, c.store.Identity(ctx))
	} else {
		err = c.store.SetAccess(ctx, out.Access)
	}
	if err != nil {
		return c.teardown(ctx, err)
	}

	log.Info().Bool("rotated", out.Refresh != "").Msg("Access credential refreshed")
	return nil
}

// teardown clears the session and returns the error surfaced to every caller
// waiting on this refresh.
func (c *Coordinator) teardown(ctx context.Context, cause error) error {
	c.failures.Add(1)
	log.Warn().Err(cause).Msg("Credential refresh failed, ending session")

	if err := c.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear credential store")
	}

	failure := fmt.Errorf("[refresh Coordinator] %w: %w", apperrors.ErrRefreshFailed, cause)
	if c.invalidator != nil {
		c.invalidator.Invalidate(ctx, failure)
	}
	return failure
}

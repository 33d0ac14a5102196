package refresh_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-analytics-client/apimodel"
	"github.com/jrsteele09/go-analytics-client/auth"
	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/jrsteele09/go-analytics-client/credentials/credentialsfake"
	"github.com/jrsteele09/go-analytics-client/dispatch"
	"github.com/jrsteele09/go-analytics-client/internal/apifake"
	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
	"github.com/jrsteele09/go-analytics-client/token/refresh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu      sync.Mutex
	reasons []error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recordingInvalidator) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reasons)
}

type pipeline struct {
	srv         *apifake.Server
	store       *credentialsfake.FakeStore
	dispatcher  *dispatch.Dispatcher
	coordinator *refresh.Coordinator
	invalidator *recordingInvalidator
}

// newPipeline starts a fake service with one logged-in user and wires the
// dispatcher, injector and coordinator around a fake store.
func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	srv := apifake.New()
	t.Cleanup(srv.Close)

	id, err := srv.AddUser("alice", "alice@example.com", "secret")
	require.NoError(t, err)
	access, refreshToken, err := srv.Issue("alice")
	require.NoError(t, err)

	store := credentialsfake.NewWith(access, refreshToken, &credentials.Identity{ID: id, Username: "alice"})
	d, err := dispatch.New(srv.APIURL())
	require.NoError(t, err)

	inv := &recordingInvalidator{}
	c := refresh.NewCoordinator(store, d, refresh.WithInvalidator(inv))
	d.AddBeforeSend(auth.NewInjector(store).BeforeSend)
	d.AddAfterReceive(c.AfterReceive)

	return &pipeline{srv: srv, store: store, dispatcher: d, coordinator: c, invalidator: inv}
}

func (p *pipeline) history(ctx context.Context) (*dispatch.Response, error) {
	call, err := dispatch.NewJSONCall(http.MethodGet, apimodel.RouteHistory, nil)
	if err != nil {
		return nil, err
	}
	return p.dispatcher.Do(ctx, call)
}

func TestCoordinator_ValidAccessNeedsNoRefresh(t *testing.T) {
	p := newPipeline(t)

	resp, err := p.history(context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 0, p.srv.RefreshCalls())
	require.Equal(t, refresh.Stats{}, p.coordinator.Stats())
}

func TestCoordinator_StaleAccessRefreshedTransparently(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	stale := p.store.Access(ctx)
	p.srv.ExpireAccess()

	resp, err := p.history(ctx)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, resp.Call.Retried())

	require.Equal(t, 1, p.srv.RefreshCalls())
	require.Equal(t, 2, p.srv.Hits(apimodel.RouteHistory))
	require.NotEqual(t, stale, p.store.Access(ctx))
	require.Equal(t, 1, p.store.AccessWrites())

	headers := p.srv.AuthHeaders(apimodel.RouteHistory)
	require.Equal(t, []string{"Bearer " + stale, "Bearer " + p.store.Access(ctx)}, headers)

	// The refresh call itself never carries the bearer credential.
	require.Equal(t, []string{""}, p.srv.AuthHeaders(apimodel.RouteTokenRefresh))

	stats := p.coordinator.Stats()
	assert.Equal(t, int64(1), stats.Refreshes)
	assert.Equal(t, int64(1), stats.Resent)
	assert.Equal(t, int64(0), stats.Failures)
	assert.Equal(t, 0, p.invalidator.Calls())
}

func TestCoordinator_SecondRejectionIsFinal(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	p.srv.SetRefreshIssuesRevoked(true)
	p.srv.ExpireAccess()

	_, err := p.history(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrAuthExpired))
	require.False(t, errors.Is(err, apperrors.ErrRefreshFailed))
	require.Equal(t, http.StatusUnauthorized, dispatch.StatusCode(err))

	require.Equal(t, 1, p.srv.RefreshCalls())
	require.Equal(t, 2, p.srv.Hits(apimodel.RouteHistory))
	require.NotEmpty(t, p.store.Refresh(ctx), "a rejected resend does not end the session")
	require.Equal(t, 0, p.invalidator.Calls())
}

func TestCoordinator_ConcurrentRejectionsShareOneRefresh(t *testing.T) {
	p := newPipeline(t)
	p.srv.SetRefreshDelay(150 * time.Millisecond)
	p.srv.ExpireAccess()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	statuses := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := p.history(context.Background())
			errs[i] = err
			if resp != nil {
				statuses[i] = resp.StatusCode
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "call %d", i)
		require.Equal(t, http.StatusOK, statuses[i], "call %d", i)
	}
	require.Equal(t, 1, p.srv.RefreshCalls())
	stats := p.coordinator.Stats()
	require.Equal(t, int64(1), stats.Refreshes)
	// Every call but the one that started the refresh either joined it or
	// found the credential already refreshed.
	require.Equal(t, int64(n-1), stats.Joined+stats.Reused)
}

func TestCoordinator_ConcurrentRejectionsEndSessionOnce(t *testing.T) {
	p := newPipeline(t)
	p.srv.RevokeRefresh()
	p.srv.ExpireAccess()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.history(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.ErrorIs(t, errs[i], apperrors.ErrRefreshFailed, "call %d", i)
	}
	require.Equal(t, 1, p.srv.RefreshCalls())
	require.Equal(t, 1, p.invalidator.Calls())
	require.Equal(t, 1, p.store.Clears())
	require.Equal(t, int64(1), p.coordinator.Stats().Failures)
}

func TestCoordinator_LateRejectionAfterTeardown(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()
	stale := p.store.Access(ctx)
	p.srv.RevokeRefresh()
	p.srv.ExpireAccess()

	_, err := p.history(ctx)
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.Equal(t, 1, p.invalidator.Calls())

	// A call sent with the same credential is rejected after the session ended.
	late, err := dispatch.NewJSONCall(http.MethodGet, apimodel.RouteHistory, nil)
	require.NoError(t, err)
	late.SetSentAccess(stale)
	_, err = p.coordinator.AfterReceive(ctx, &dispatch.Response{StatusCode: http.StatusUnauthorized, Call: late})
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.ErrorIs(t, err, refresh.ErrNoRefreshCredential)

	require.Equal(t, 1, p.invalidator.Calls())
	require.Equal(t, 1, p.store.Clears())
	require.Equal(t, 1, p.srv.RefreshCalls())
	require.Equal(t, int64(1), p.coordinator.Stats().Failures)
}

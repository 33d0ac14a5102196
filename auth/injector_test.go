package auth_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jrsteele09/go-analytics-client/auth"
	"github.com/jrsteele09/go-analytics-client/credentials/credentialsfake"
	"github.com/jrsteele09/go-analytics-client/dispatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://example.com/api/history/", nil)
	require.NoError(t, err)
	return req
}

func TestInjector_AttachesBearer(t *testing.T) {
	store := credentialsfake.NewWith("access-1", "refresh-1", nil)
	inj := auth.NewInjector(store)

	call := dispatch.NewCall(http.MethodGet, "history/", nil, "")
	req := newRequest(t)
	require.NoError(t, inj.BeforeSend(context.Background(), call, req))

	assert.Equal(t, "Bearer access-1", req.Header.Get("Authorization"))
	assert.Equal(t, "access-1", call.SentAccess())
}

func TestInjector_NoCredentialSendsUnmodified(t *testing.T) {
	inj := auth.NewInjector(credentialsfake.New())

	call := dispatch.NewCall(http.MethodGet, "history/", nil, "")
	req := newRequest(t)
	require.NoError(t, inj.BeforeSend(context.Background(), call, req))

	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Empty(t, call.SentAccess())
}

func TestInjector_ReflectsLatestCredential(t *testing.T) {
	ctx := context.Background()
	store := credentialsfake.NewWith("old", "refresh-1", nil)
	inj := auth.NewInjector(store)
	call := dispatch.NewCall(http.MethodGet, "history/", nil, "")

	require.NoError(t, inj.BeforeSend(ctx, call, newRequest(t)))
	require.NoError(t, store.SetAccess(ctx, "new"))

	req := newRequest(t)
	require.NoError(t, inj.BeforeSend(ctx, call, req))
	assert.Equal(t, "Bearer new", req.Header.Get("Authorization"))
	assert.Equal(t, "new", call.SentAccess())
}

func TestInjector_PublicCallsCarryNoCredential(t *testing.T) {
	inj := auth.NewInjector(credentialsfake.NewWith("access-1", "refresh-1", nil))

	call := dispatch.NewCall(http.MethodPost, "login/", nil, "").AsPublic()
	req := newRequest(t)
	require.NoError(t, inj.BeforeSend(context.Background(), call, req))

	assert.Empty(t, req.Header.Get("Authorization"))
}

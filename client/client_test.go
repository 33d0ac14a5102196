package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-analytics-client/apimodel"
	"github.com/jrsteele09/go-analytics-client/client"
	"github.com/jrsteele09/go-analytics-client/credentials/redisstore"
	"github.com/jrsteele09/go-analytics-client/internal/apifake"
	"github.com/jrsteele09/go-analytics-client/internal/config"
	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
	"github.com/jrsteele09/go-analytics-client/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvData = "timestamp,temperature,pressure\n2024-01-01,20.5,101\n2024-01-02,21.0,99\n"

func testConfig(t *testing.T, srv *apifake.Server, backend config.StoreBackend) config.Config {
	t.Helper()
	t.Setenv("ANALYTICS_BASE_URL", srv.APIURL())
	t.Setenv("ANALYTICS_STORE", string(backend))
	t.Setenv("ANALYTICS_STORE_PATH", filepath.Join(t.TempDir(), "credentials.yaml"))
	cfg, err := config.Parse()
	require.NoError(t, err)
	return cfg
}

func newClient(t *testing.T, cfg config.Config, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func loggedIn(t *testing.T) (*apifake.Server, *client.Client) {
	t.Helper()
	srv := apifake.New()
	t.Cleanup(srv.Close)
	_, err := srv.AddUser("alice", "alice@example.com", "secret")
	require.NoError(t, err)

	c := newClient(t, testConfig(t, srv, config.StoreMemory))
	_, err = c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	return srv, c
}

func TestClient_ValidAccess(t *testing.T) {
	srv, c := loggedIn(t)

	history, err := c.History(context.Background())
	require.NoError(t, err)
	require.Empty(t, history)
	require.Equal(t, 0, srv.RefreshCalls())
	require.Len(t, srv.AuthHeaders(apimodel.RouteHistory), 1)
	require.True(t, strings.HasPrefix(srv.AuthHeaders(apimodel.RouteHistory)[0], "Bearer "))
}

func TestClient_StaleAccessValidRefresh(t *testing.T) {
	srv, c := loggedIn(t)
	ctx := context.Background()
	srv.ExpireAccess()

	p, err := c.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", p.Username)
	require.Equal(t, 1, srv.RefreshCalls())
	require.Equal(t, int64(1), c.Stats().Resent)
	require.True(t, c.IsAuthenticated(ctx))
}

func TestClient_StaleAccessInvalidRefresh(t *testing.T) {
	srv, c := loggedIn(t)
	ctx := context.Background()

	var invalidated int
	c.OnInvalidated(func(error) { invalidated++ })

	srv.ExpireAccess()
	srv.RevokeRefresh()

	_, err := c.History(ctx)
	require.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	require.False(t, c.IsAuthenticated(ctx))
	require.Nil(t, c.CurrentUser(ctx))
	require.Equal(t, 1, invalidated)
}

func TestClient_UploadIsReplayedAfterRefresh(t *testing.T) {
	srv, c := loggedIn(t)
	ctx := context.Background()
	srv.ExpireAccess()

	out, err := c.Upload(ctx, "sensors.csv", strings.NewReader(csvData))
	require.NoError(t, err)
	require.Equal(t, "success", out.Status)
	require.NotZero(t, out.FileID)
	require.Equal(t, 2, srv.Hits(apimodel.RouteUpload))

	history, err := c.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, out.FileID, history[0].ID)
	assert.Equal(t, 2, history[0].RowCount)
	assert.Equal(t, "sensors.csv", history[0].Filename)
}

func TestClient_UploadRejectedLocally(t *testing.T) {
	srv, c := loggedIn(t)
	ctx := context.Background()

	_, err := c.Upload(ctx, "sensors.xlsx", strings.NewReader(csvData))
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	big := bytes.Repeat([]byte("a"), apimodel.MaxUploadSize+1)
	_, err = c.Upload(ctx, "big.csv", bytes.NewReader(big))
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	require.Equal(t, 0, srv.Hits(apimodel.RouteUpload))
}

func TestClient_DatasetLifecycle(t *testing.T) {
	_, c := loggedIn(t)
	ctx := context.Background()

	first, err := c.Upload(ctx, "a.csv", strings.NewReader(csvData))
	require.NoError(t, err)
	second, err := c.Upload(ctx, "b.csv", strings.NewReader(csvData+"2024-01-03,22.0,98\n"))
	require.NoError(t, err)

	analysis, err := c.Analysis(ctx, first.FileID)
	require.NoError(t, err)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(analysis, &summary))
	require.Equal(t, "a.csv", summary["filename"])

	cmp, err := c.Compare(ctx, first.FileID, second.FileID)
	require.NoError(t, err)
	var diff map[string]any
	require.NoError(t, json.Unmarshal(cmp, &diff))
	require.EqualValues(t, 1, diff["row_delta"])

	pdf, err := c.ExportPDF(ctx, first.FileID, "pw")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	_, err = c.ExportExcel(ctx, first.FileID, "")
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	require.NoError(t, c.DeleteDataset(ctx, first.FileID))
	_, err = c.Analysis(ctx, first.FileID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	p, err := c.Profile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, p.UploadCount)
}

func TestClient_ProfileAndPassword(t *testing.T) {
	_, c := loggedIn(t)
	ctx := context.Background()

	_, err := c.UpdateProfile(ctx, apimodel.ProfileUpdate{})
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)

	p, err := c.UpdateProfile(ctx, apimodel.ProfileUpdate{
		FirstName: utils.Ptr("Alice"),
		Profile:   &apimodel.ProfileDetails{Company: utils.Ptr("Acme")},
	})
	require.NoError(t, err)
	require.Equal(t, "Alice", p.FirstName)
	require.Equal(t, "Acme", utils.Value(p.Profile.Company))

	err = c.ChangePassword(ctx, "wrong", "new-secret")
	require.ErrorIs(t, err, apperrors.ErrInvalidRequest)
	require.True(t, c.IsAuthenticated(ctx), "a business failure leaves the session alone")

	require.NoError(t, c.ChangePassword(ctx, "secret", "new-secret"))
	require.NoError(t, c.Logout(ctx))
	_, err = c.Login(ctx, "alice", "new-secret")
	require.NoError(t, err)
}

func TestClient_GenericCall(t *testing.T) {
	srv, c := loggedIn(t)
	srv.ExpireAccess()

	resp, err := c.Call(context.Background(), http.MethodGet, "/profile/", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, resp.Call.Retried())
}

func TestClient_FileStoreSurvivesRestart(t *testing.T) {
	srv := apifake.New()
	defer srv.Close()
	_, err := srv.AddUser("alice", "alice@example.com", "secret")
	require.NoError(t, err)
	cfg := testConfig(t, srv, config.StoreFile)
	ctx := context.Background()

	first := newClient(t, cfg)
	_, err = first.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	second := newClient(t, cfg)
	require.True(t, second.IsAuthenticated(ctx))
	require.Equal(t, "alice", second.CurrentUser(ctx).Username)
	_, err = second.History(ctx)
	require.NoError(t, err)

	require.NoError(t, second.Logout(ctx))
	third := newClient(t, cfg)
	require.False(t, third.IsAuthenticated(ctx))
}

func TestClient_RedisStoreSharesSession(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := apifake.New()
	defer srv.Close()
	_, err := srv.AddUser("alice", "alice@example.com", "secret")
	require.NoError(t, err)

	t.Setenv("ANALYTICS_REDIS_ADDR", mr.Addr())
	cfg := testConfig(t, srv, config.StoreRedis)
	ctx := context.Background()

	a := newClient(t, cfg)
	b := newClient(t, cfg)
	_, err = a.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	require.True(t, b.IsAuthenticated(ctx))

	store, ok := a.Store().(*redisstore.RedisStore)
	require.True(t, ok)
	require.True(t, mr.Exists(store.Key()))

	// A refresh by one process is picked up by the other without a second refresh.
	srv.ExpireAccess()
	_, err = a.History(ctx)
	require.NoError(t, err)
	_, err = b.History(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, srv.RefreshCalls())
}

func TestNewStore_UnknownBackend(t *testing.T) {
	_, _, err := client.NewStore(config.Store{Backend: "tape"})
	require.Error(t, err)
}

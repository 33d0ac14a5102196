// Package client assembles the authenticated request pipeline: a credential
// store, the dispatcher, the credential injector, the refresh coordinator and
// the session controller, wired together behind one facade.
package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-analytics-client/auth"
	"github.com/jrsteele09/go-analytics-client/credentials"
	"github.com/jrsteele09/go-analytics-client/credentials/filestore"
	"github.com/jrsteele09/go-analytics-client/credentials/redisstore"
	"github.com/jrsteele09/go-analytics-client/dispatch"
	"github.com/jrsteele09/go-analytics-client/internal/config"
	apperrors "github.com/jrsteele09/go-analytics-client/internal/errors"
	"github.com/jrsteele09/go-analytics-client/sessions"
	"github.com/jrsteele09/go-analytics-client/token/refresh"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisProfile = "default"

// Client is the entry point for talking to the analytics service. Session
// operations (Login, Signup, Logout, IsAuthenticated, CurrentUser,
// OnInvalidated) are promoted from the embedded controller.
type Client struct {
	*sessions.Controller

	store       credentials.Store
	dispatcher  *dispatch.Dispatcher
	coordinator *refresh.Coordinator
	closers     []func() error
}

type options struct {
	store      credentials.Store
	httpClient *http.Client
}

// Option customises how New builds the client.
type Option func(*options)

// WithStore uses store instead of the backend selected by configuration.
func WithStore(store credentials.Store) Option {
	return func(o *options) { o.store = store }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New builds and wires the pipeline and loads any persisted session.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{store: o.store}
	if c.store == nil {
		store, closer, err := NewStore(cfg)
		if err != nil {
			return nil, fmt.Errorf("[client New] %w", err)
		}
		c.store = store
		if closer != nil {
			c.closers = append(c.closers, closer)
		}
	}

	if err := c.store.Load(ctx); err != nil {
		_ = c.Close()
		return nil, apperrors.Wrapf(err, "[client New] load credentials")
	}

	dispatchOpts := []dispatch.Option{
		dispatch.WithTimeout(cfg.GetTimeout()),
		dispatch.WithUserAgent(cfg.GetUserAgent()),
	}
	if o.httpClient != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithHTTPClient(o.httpClient))
	}
	d, err := dispatch.New(cfg.GetBaseURL(), dispatchOpts...)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("[client New] %w", err)
	}
	c.dispatcher = d

	c.Controller = sessions.NewController(c.store, d)
	c.coordinator = refresh.NewCoordinator(c.store, d, refresh.WithInvalidator(c.Controller))
	d.AddBeforeSend(auth.NewInjector(c.store).BeforeSend)
	d.AddAfterReceive(c.coordinator.AfterReceive)

	log.Debug().Str("base_url", d.BaseURL()).Bool("authenticated", c.IsAuthenticated(ctx)).Msg("Client ready")
	return c, nil
}

// NewStore builds the credential store selected by cfg. The returned closer,
// when not nil, releases the backend's resources.
func NewStore(cfg config.StoreConfig) (credentials.Store, func() error, error) {
	switch cfg.GetStoreBackend() {
	case config.StoreMemory:
		return credentials.NewMemoryStore(), nil, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr()})
		return redisstore.New(rdb, cfg.GetRedisPrefix()+redisProfile, cfg.GetRedisTTL()), rdb.Close, nil
	case config.StoreFile, "":
		return filestore.New(cfg.GetStorePath()), nil, nil
	default:
		return nil, nil, fmt.Errorf("[client NewStore] unknown store backend %q", cfg.GetStoreBackend())
	}
}

// Call sends payload as JSON to endpoint through the authenticated pipeline.
// A nil payload sends no body.
func (c *Client) Call(ctx context.Context, method, endpoint string, payload any) (*dispatch.Response, error) {
	call, err := dispatch.NewJSONCall(method, endpoint, payload)
	if err != nil {
		return nil, err
	}
	return c.dispatcher.Do(ctx, call)
}

// Do sends a prepared call through the pipeline.
func (c *Client) Do(ctx context.Context, call *dispatch.Call) (*dispatch.Response, error) {
	return c.dispatcher.Do(ctx, call)
}

func (c *Client) Store() credentials.Store {
	return c.store
}

func (c *Client) BaseURL() string {
	return c.dispatcher.BaseURL()
}

// Stats reports the refresh coordinator's counters.
func (c *Client) Stats() refresh.Stats {
	return c.coordinator.Stats()
}

// Close releases the store backend.
func (c *Client) Close() error {
	var errs []error
	for _, closer := range c.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return apperrors.Join(errs...)
}

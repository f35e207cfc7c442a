// Package telegram provides the MTProto user client the relay talks
// through.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message/peer"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"

	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

// ErrNotAuthorized is returned when the stored session is not logged in.
var ErrNotAuthorized = errors.New("telegram session is not authorized, run relayctl login")

// Config holds the MTProto client configuration.
type Config struct {
	AppID         int
	AppHash       string
	SessionFile   string
	SessionString string
	PollInterval  time.Duration
}

// Client is the single long-lived MTProto connection of the process.
type Client struct {
	tg        *telegram.Client
	cfg       Config
	logger    *logger.Logger
	connected atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// Connect starts the client in the background and returns once the session
// is verified to be authorized.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	storage, err := sessionStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		logger: log.Named("telegram"),
		done:   make(chan struct{}),
	}
	c.tg = telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		Logger:         c.logger.Named("mtproto").Logger,
		SessionStorage: storage,
	})

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	ready := make(chan error, 1)
	go func() {
		defer close(c.done)

		err := c.tg.Run(runCtx, func(ctx context.Context) error {
			status, err := c.tg.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status: %w", err)
			}
			if !status.Authorized {
				return ErrNotAuthorized
			}

			c.connected.Store(true)
			ready <- nil

			<-ctx.Done()
			return ctx.Err()
		})
		c.connected.Store(false)

		select {
		case ready <- err:
		default:
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("telegram client stopped", zap.Error(err))
		}
	}()

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-c.done
			return nil, fmt.Errorf("failed to start telegram client: %w", err)
		}
	case <-ctx.Done():
		cancel()
		<-c.done
		return nil, ctx.Err()
	}

	c.logger.Info("telegram client connected")
	return c, nil
}

// Close stops the client and waits for it to exit.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

// IsConnected returns true while the client is running and authorized.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Me returns the username of the logged in account.
func (c *Client) Me(ctx context.Context) (string, error) {
	self, err := c.tg.Self(ctx)
	if err != nil {
		return "", wrapErr(err)
	}
	return self.Username, nil
}

// Transport returns the relay transport backed by this client.
func (c *Client) Transport() *Transport {
	api := c.tg.API()
	resolver := peer.DefaultResolver(api)
	return NewTransport(api, resolver.ResolveDomain, c.cfg.PollInterval)
}

func sessionStorage(ctx context.Context, cfg Config) (telegram.SessionStorage, error) {
	if cfg.SessionString == "" {
		if cfg.SessionFile == "" {
			return nil, errors.New("no telegram session configured")
		}
		return &session.FileStorage{Path: cfg.SessionFile}, nil
	}

	data, err := session.TelethonSession(cfg.SessionString)
	if err != nil {
		return nil, fmt.Errorf("decode session string: %w", err)
	}

	storage := &session.StorageMemory{}
	loader := session.Loader{Storage: storage}
	if err := loader.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("import session string: %w", err)
	}
	return storage, nil
}

// compile-time check
var _ rpc = (*tg.Client)(nil)

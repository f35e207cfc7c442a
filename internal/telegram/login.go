package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

// CodePrompt asks the operator for the login code Telegram sent.
type CodePrompt func(ctx context.Context) (string, error)

// LoginConfig holds what an interactive login needs.
type LoginConfig struct {
	AppID       int
	AppHash     string
	SessionFile string
	Phone       string
	Password    string
}

// Login authorizes the account and writes the session file. An already
// authorized session is left as is.
func Login(ctx context.Context, cfg LoginConfig, prompt CodePrompt, log *logger.Logger) (*tg.User, error) {
	if cfg.SessionFile == "" {
		return nil, errors.New("session file is required")
	}
	if cfg.Phone == "" {
		return nil, errors.New("phone is required")
	}

	client := telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{
		Logger:         log.Named("mtproto").Logger,
		SessionStorage: &session.FileStorage{Path: cfg.SessionFile},
	})

	codeAuth := auth.CodeAuthenticatorFunc(func(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
		return prompt(ctx)
	})
	flow := auth.NewFlow(auth.Constant(cfg.Phone, cfg.Password, codeAuth), auth.SendCodeOptions{})

	var self *tg.User
	err := client.Run(ctx, func(ctx context.Context) error {
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		u, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("self: %w", err)
		}
		self = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return self, nil
}

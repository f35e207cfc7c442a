package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/callerid-relay/internal/config"
	"github.com/capitalize-ai/callerid-relay/internal/telegram"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

func NewLoginCommand() *cobra.Command {
	var phoneNumber string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log the relay account in and write the session file",
		Args:  cobra.NoArgs,
		Example: `  relayctl login
  relayctl login --phone +972501234567`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if phoneNumber == "" {
				phoneNumber = cfg.Phone
			}
			if cfg.APIID == 0 || cfg.APIHash == "" {
				return errors.New("API_ID and API_HASH are required")
			}

			log, err := logger.New(cfg.LogLevel, true)
			if err != nil {
				return err
			}
			defer log.Sync()

			prompt := codePrompt(cmd.InOrStdin(), cmd.OutOrStdout())
			self, err := telegram.Login(cmd.Context(), telegram.LoginConfig{
				AppID:       cfg.APIID,
				AppHash:     cfg.APIHash,
				SessionFile: cfg.SessionFile(),
				Phone:       phoneNumber,
				Password:    cfg.TelegramPassword,
			}, prompt, log)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as @%s, session written to %s\n", self.Username, cfg.SessionFile())
			return nil
		},
	}

	cmd.Flags().StringVar(&phoneNumber, "phone", "",
		"Account phone number (default: $PHONE)")

	return cmd
}

// codePrompt reads the login code from in.
func codePrompt(in io.Reader, out io.Writer) telegram.CodePrompt {
	reader := bufio.NewReader(in)
	return func(_ context.Context) (string, error) {
		fmt.Fprint(out, "Enter the code Telegram sent you: ")
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return "", fmt.Errorf("read code: %w", err)
		}
		code := strings.TrimSpace(line)
		if code == "" {
			return "", errors.New("empty code")
		}
		return code, nil
	}
}

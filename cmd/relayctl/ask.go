package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/callerid-relay/internal/config"
	"github.com/capitalize-ai/callerid-relay/internal/model"
	"github.com/capitalize-ai/callerid-relay/internal/phone"
	"github.com/capitalize-ai/callerid-relay/internal/relay"
	"github.com/capitalize-ai/callerid-relay/internal/telegram"
	"github.com/capitalize-ai/callerid-relay/pkg/logger"
)

func NewAskCommand() *cobra.Command {
	var (
		window time.Duration
		delay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask <number>...",
		Short: "Look up one or more numbers",
		Args:  cobra.MinimumNArgs(1),
		Example: `  relayctl ask 050-123-4567
  relayctl ask --window 6s 0501234567
  relayctl ask --delay 2s 0501234567 0527654321`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logger.New(cfg.LogLevel, cfg.IsDevelopment())
			if err != nil {
				return err
			}
			defer log.Sync()

			plan, err := phone.NewPlan(cfg.PhoneCountryCode, cfg.PhoneMobilePrefix)
			if err != nil {
				return err
			}

			client, err := telegram.Connect(cmd.Context(), telegram.Config{
				AppID:         cfg.APIID,
				AppHash:       cfg.APIHash,
				SessionFile:   cfg.SessionFile(),
				SessionString: cfg.SessionString,
				PollInterval:  cfg.PollInterval,
			}, log)
			if err != nil {
				return err
			}
			defer client.Close()

			rl := relay.New(client.Transport(), cfg.TargetBot, log, relay.WithPlan(plan))
			out := cmd.OutOrStdout()
			rl.RunBatch(cmd.Context(), args, relay.BatchOptions{Delay: delay, Window: window},
				func(_ int, res model.LookupResult) { printResult(out, res) })
			return nil
		},
	}

	cmd.Flags().DurationVar(&window, "window", time.Second,
		"How long to collect follow-up replies")
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond,
		"Pause between numbers")

	return cmd
}

func printResult(w io.Writer, res model.LookupResult) {
	fmt.Fprintf(w, "%s (%s)\n", res.Query, res.Status)
	if res.Status != model.StatusOK {
		fmt.Fprintf(w, "  error: %s\n", res.Error)
		return
	}
	for i, reply := range res.Replies {
		fmt.Fprintf(w, "[%d] %s\n", i+1, reply)
	}
}

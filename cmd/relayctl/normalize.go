package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/callerid-relay/internal/phone"
)

func NewNormalizeCommand() *cobra.Command {
	var countryCode, mobilePrefix string

	cmd := &cobra.Command{
		Use:   "normalize <number>...",
		Short: "Show how numbers are normalized, without sending anything",
		Args:  cobra.MinimumNArgs(1),
		Example: `  relayctl normalize "050-123 4567" 031234567
  relayctl normalize --country-code 44 --mobile-prefix 7 071-234-5678`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := phone.NewPlan(countryCode, mobilePrefix)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, raw := range args {
				n := plan.Normalize(raw)
				verdict := "phone"
				if !plan.LooksLikePhone(n) {
					verdict = "not a phone"
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", raw, n, verdict)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&countryCode, "country-code", "972",
		"Country calling code without +")
	cmd.Flags().StringVar(&mobilePrefix, "mobile-prefix", "5",
		"Leading digit of mobile numbers after the trunk 0")

	return cmd
}

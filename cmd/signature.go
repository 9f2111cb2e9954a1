package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/monterey-cards/repricer/internal/signature"
)

var (
	sigTitle     string
	sigCompTitle string
	sigCompPrice float64
)

var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Inspect extraction and matching for a title",
	Long: `Prints the extracted signature and the generated search queries for a
title. With --comp-title, also judges that comp against the subject and
prints the verdict.

Examples:
  repricer signature --title "2021 Topps Chrome Refractor #50 Mike Trout"
  repricer signature --title "..." --comp-title "..." --comp-price 12.00`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if sigTitle == "" {
			return eris.New("signature: --title is required")
		}

		env, err := initOfflineEnv(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "signature: init")
		}
		defer env.Close()

		sig := env.Extractor.Extract(sigTitle)
		out := map[string]any{
			"signature": sig,
			"queries":   env.Builder.Build(sigTitle),
		}
		if frag, ok := signature.SerialFragment(sigTitle); ok {
			out["serial_fragment"] = frag
		}
		if sigCompTitle != "" {
			out["verdict"] = env.Matcher.Judge(sig, sigTitle, sigCompTitle, sigCompPrice)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(out), "signature: encode")
	},
}

func init() {
	signatureCmd.Flags().StringVar(&sigTitle, "title", "", "subject listing title (required)")
	signatureCmd.Flags().StringVar(&sigCompTitle, "comp-title", "", "comp title to judge against the subject")
	signatureCmd.Flags().Float64Var(&sigCompPrice, "comp-price", 0, "comp total price used by the safety filter")
	rootCmd.AddCommand(signatureCmd)
}

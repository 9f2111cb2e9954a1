package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/monterey-cards/repricer/internal/model"
)

var (
	priceTitle   string
	priceCurrent float64
	priceItemID  string
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price a single listing title",
	Long: `Runs the full pipeline for one listing and prints the result as JSON.

Examples:
  repricer price --title "2021 Topps Chrome Refractor #50 Mike Trout"
  repricer price --title "2020 Donruss Jr Griffey #1" --current 5.00`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if priceTitle == "" {
			return eris.New("price: --title is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "price: init")
		}
		defer env.Close()

		res := env.Pricer.Reprice(cmd.Context(), model.Listing{
			ItemID:       priceItemID,
			Title:        priceTitle,
			CurrentPrice: priceCurrent,
		})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "price: encode result")
	},
}

func init() {
	priceCmd.Flags().StringVar(&priceTitle, "title", "", "listing title (required)")
	priceCmd.Flags().Float64Var(&priceCurrent, "current", 0, "current listing price (0 disables drop clamps)")
	priceCmd.Flags().StringVar(&priceItemID, "item-id", "", "optional item identifier recorded with the result")
	rootCmd.AddCommand(priceCmd)
}

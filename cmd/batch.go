package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/monterey-cards/repricer/internal/model"
)

var (
	batchCSV         string
	batchLimit       int
	batchConcurrency int
	batchOutput      string
	batchFormat      string
	batchDryRun      bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Reprice a CSV of listings",
	Long: `Reads listings from a CSV (columns: title, optional item_id, optional
current_price), prices them concurrently and writes a report.

Examples:
  # Parse only, no pricing
  repricer batch --csv listings.csv --dry-run

  # Price everything, write JSON
  repricer batch --csv listings.csv --output results.json

  # Spreadsheet report
  repricer batch --csv listings.csv --format xlsx --output results.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		listings, err := parseListingsCSV(batchCSV)
		if err != nil {
			return eris.Wrap(err, "batch: parse csv")
		}
		zap.L().Info("parsed csv", zap.Int("listings", len(listings)))

		if batchLimit > 0 && batchLimit < len(listings) {
			listings = listings[:batchLimit]
		}

		if batchDryRun {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(listings), "batch: encode listings")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return eris.Wrap(err, "batch: init")
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		results := repriceAll(ctx, env.Pricer.Reprice, listings, concurrency)

		var suggested, unchanged, noData, failed int
		for _, res := range results {
			switch res.Status {
			case model.RepriceStatusSuggested:
				suggested++
			case model.RepriceStatusUnchanged:
				unchanged++
			case model.RepriceStatusNoData:
				noData++
			case model.RepriceStatusFailed:
				failed++
				zap.L().Error("batch: listing failed",
					zap.String("title", res.Listing.Title),
					zap.String("error", res.Error),
				)
			}
		}

		zap.L().Info("batch complete",
			zap.Int("total", len(listings)),
			zap.Int("suggested", suggested),
			zap.Int("unchanged", unchanged),
			zap.Int("no_data", noData),
			zap.Int("failed", failed),
		)

		return writeBatchReport(results, batchFormat, batchOutput)
	},
}

// repriceAll prices every listing with bounded concurrency. Each listing gets
// a result slot whatever happens; a failed listing never aborts the rest of
// the batch.
func repriceAll(ctx context.Context, reprice func(context.Context, model.Listing) model.RepriceResult, listings []model.Listing, concurrency int) []model.RepriceResult {
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	results := make([]model.RepriceResult, len(listings))
	for i, l := range listings {
		g.Go(func() error {
			results[i] = reprice(gCtx, l)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// parseListingsCSV reads listings from a CSV with a header row. Column
// matching is name-based and case-insensitive; only "title" is required.
func parseListingsCSV(path string) ([]model.Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, eris.Wrap(err, "read header")
	}
	titleIdx, idIdx, priceIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "title":
			titleIdx = i
		case "item_id", "id", "item id":
			idIdx = i
		case "current_price", "price", "current price":
			priceIdx = i
		}
	}
	if titleIdx < 0 {
		return nil, eris.New("csv has no title column")
	}

	var out []model.Listing
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "read row")
		}
		if titleIdx >= len(rec) || strings.TrimSpace(rec[titleIdx]) == "" {
			continue
		}
		l := model.Listing{Title: strings.TrimSpace(rec[titleIdx])}
		if idIdx >= 0 && idIdx < len(rec) {
			l.ItemID = strings.TrimSpace(rec[idIdx])
		}
		if priceIdx >= 0 && priceIdx < len(rec) {
			if p, perr := strconv.ParseFloat(strings.TrimSpace(rec[priceIdx]), 64); perr == nil {
				l.CurrentPrice = p
			}
		}
		out = append(out, l)
	}
	return out, nil
}

var reportHeader = []string{
	"item_id", "title", "current_price", "suggested_price",
	"median_active", "median_sold", "status", "note",
	"active_comps", "sold_comps", "from_cache",
}

func writeBatchReport(results []model.RepriceResult, format, output string) error {
	switch format {
	case "json", "":
		return writeJSONReport(results, output)
	case "csv":
		return writeCSVReport(results, output)
	case "xlsx":
		return writeXLSXReport(results, output)
	default:
		return eris.Errorf("unknown report format %q", format)
	}
}

func writeJSONReport(results []model.RepriceResult, output string) error {
	w := os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return eris.Wrapf(err, "create %s", output)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(results), "encode results")
}

func writeCSVReport(results []model.RepriceResult, output string) error {
	if output == "" {
		output = "repricer-results.csv"
	}
	f, err := os.Create(output)
	if err != nil {
		return eris.Wrapf(err, "create %s", output)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(reportHeader); err != nil {
		return eris.Wrap(err, "write header")
	}
	for _, r := range results {
		if err := w.Write(reportRow(r)); err != nil {
			return eris.Wrap(err, "write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func writeXLSXReport(results []model.RepriceResult, output string) error {
	if output == "" {
		output = "repricer-results.xlsx"
	}
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	hdr := sheet.AddRow()
	for _, col := range reportHeader {
		hdr.AddCell().Value = col
	}
	for _, r := range results {
		row := sheet.AddRow()
		for _, v := range reportRow(r) {
			row.AddCell().Value = v
		}
	}
	return eris.Wrapf(file.Save(output), "save %s", output)
}

func reportRow(r model.RepriceResult) []string {
	return []string{
		r.Listing.ItemID,
		r.Listing.Title,
		fmtPrice(&r.Listing.CurrentPrice),
		fmtPrice(r.Suggestion.SuggestedPrice),
		fmtPrice(r.Suggestion.MedianActive),
		fmtPrice(r.Suggestion.MedianSold),
		string(r.Status),
		r.Suggestion.Note,
		strconv.Itoa(r.ActiveComps),
		strconv.Itoa(r.SoldComps),
		strconv.FormatBool(r.FromCache),
	}
}

func fmtPrice(f *float64) string {
	if f == nil || *f == 0 {
		return ""
	}
	return fmt.Sprintf("%.2f", *f)
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "input CSV path (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "process at most N listings")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel listings (default from config)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "report path (default stdout for json)")
	batchCmd.Flags().StringVar(&batchFormat, "format", "json", "report format: json, csv or xlsx")
	batchCmd.Flags().BoolVar(&batchDryRun, "dry-run", false, "parse the CSV and exit")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}

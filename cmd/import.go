package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"inventory-sync/core/reconcile"
	"inventory-sync/feature/inventory"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	importFile         string
	importObject       string
	importLocation     string
	importAllLocations bool
	importDryRun       bool
	yesConfirm         bool
)

// importCmd reconciles a CSV sheet against the remote inventory.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Reconcile a CSV sheet against the remote inventory",
	Long: `Classifies every row of a sheet against current inventory, then applies the
accepted changes through a bulk write job.

The sheet needs a sku and a quantity (or qty/available) column. In all-locations mode
every row also needs a location column.

Examples:
  # Report only
  import --file levels.csv --location Main --dry-run

  # Apply with interactive confirmation
  import --file levels.csv --all-locations

  # Sheet stored in the artifact bucket, auto-confirm
  import --object uploads/levels.csv --location Main --yes`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "CSV sheet to import")
	importCmd.Flags().StringVar(&importObject, "object", "", "Object key of the sheet in the artifact bucket")
	importCmd.Flags().StringVar(&importLocation, "location", "", "Target location (name or id)")
	importCmd.Flags().BoolVar(&importAllLocations, "all-locations", false, "Rows name their own location")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Classify only, change nothing")
	importCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm (non-interactive)")
	importCmd.MarkFlagsMutuallyExclusive("file", "object")
	importCmd.MarkFlagsMutuallyExclusive("location", "all-locations")
	RootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if importFile == "" && importObject == "" {
		return errors.New("one of --file or --object is required")
	}

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	l := a.logger

	sheet, source, err := readSheet(ctx, a.service)
	if err != nil {
		return err
	}
	rows, err := inventory.DecodeRows(bytes.NewReader(sheet))
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", source, err)
	}
	l.Info("Sheet loaded", zap.String("source", source), zap.Int("rows", len(rows)))

	req := inventory.ImportRequest{
		Rows:         rows,
		Location:     importLocation,
		AllLocations: importAllLocations,
		DryRun:       true,
		Source:       source,
		Sheet:        sheet,
	}

	// Step 1: Plan (always runs)
	plan, err := a.service.Import(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to plan import: %w", err)
	}
	printReport(l, plan.Report)

	if plan.Units == 0 {
		l.Info("Nothing to apply.")
		return nil
	}
	if importDryRun {
		l.Info("Dry-run mode: No changes were made.", zap.Int("batch_units", plan.Units))
		return nil
	}

	// Step 2: Apply (if confirmed)
	if !confirmAction(plan.Report.Applied) {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	req.DryRun = false
	res, err := a.service.Import(ctx, req)
	if res != nil && res.Report != nil {
		printReport(l, res.Report)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	l.Info("Import finished", zap.String("run_id", res.RunID), zap.String("report", res.ReportKey))
	return nil
}

func readSheet(ctx context.Context, svc *inventory.Service) ([]byte, string, error) {
	if importFile != "" {
		data, err := os.ReadFile(importFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", importFile, err)
		}
		return data, importFile, nil
	}
	rc, err := svc.OpenArtifact(ctx, importObject)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", importObject, err)
	}
	return data, importObject, nil
}

// printReport prints a run report using logger.
func printReport(l *zap.Logger, r *reconcile.Report) {
	l.Info("Import report",
		zap.Int("total", r.Total),
		zap.Int("applied", r.Applied),
		zap.Int("skipped", r.Skipped),
		zap.Int("rejected", r.Rejected),
		zap.Int("failed", r.Failed),
	)

	maxShow := min(5, len(r.Rejections))
	for _, issue := range r.Rejections[:maxShow] {
		l.Info("Rejected row",
			zap.Int("line", issue.Line),
			zap.String("sku", issue.SKU),
			zap.String("location", issue.Location),
			zap.String("reason", issue.Reason),
		)
	}
	if len(r.Rejections) > maxShow {
		l.Info("Additional rejections not shown", zap.Int("count", len(r.Rejections)-maxShow))
	}

	for _, e := range r.JobErrors {
		l.Warn("Change failed",
			zap.Int("line", e.Line),
			zap.String("sku", e.SKU),
			zap.String("location_id", e.LocationID),
			zap.String("message", e.Message),
		)
	}
}

// confirmAction prompts the user for confirmation or uses --yes flag.
func confirmAction(changes int) bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Printf("\n⚠️  Type 'yes' to apply %d inventory changes: ", changes)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(response)
	return response == "yes"
}

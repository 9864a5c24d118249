package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
	"github.com/jmylchreest/leilao/internal/output"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline for a state and city",
	Long: `Scrape the listing of a state and city, fetch every property detail,
score each property and write the consolidated report.

Examples:
  leilao run --estado GO --cidade "RIO VERDE"
  leilao run --estado DF --cidade BRASILIA --min-nota 7 --max-imoveis 3 -o automation_result.json`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.String("estado", "", "state (UF), e.g. GO")
	flags.String("cidade", "", "city as listed on the site, e.g. \"RIO VERDE\"")
	flags.Float64("min-nota", 0, "minimum final score to approve a property (inclusive)")
	flags.Int("max-imoveis", 0, "analyze at most this many properties (0=all)")
	flags.StringP("output", "o", "", "report file; format follows the extension (default: stdout)")
	flags.String("format", "text", "stdout format: text, json, yaml")

	_ = runCmd.MarkFlagRequired("estado")
	_ = runCmd.MarkFlagRequired("cidade")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flags := cmd.Flags()
	state, _ := flags.GetString("estado")
	city, _ := flags.GetString("cidade")
	minScore, _ := flags.GetFloat64("min-nota")
	maxProps, _ := flags.GetInt("max-imoveis")
	outPath, _ := flags.GetString("output")
	formatStr, _ := flags.GetString("format")

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	store := openStore()
	p, sc, err := newPipeline(ctx, store)
	if err != nil {
		logger.Error("failed to set up pipeline", "error", err)
		return err
	}
	defer sc.Close()

	params := domain.RunParams{State: state, City: city, MinScore: minScore, MaxProperties: maxProps}
	report, err := p.Run(ctx, params)
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := output.WriteFile(outPath, report); err != nil {
			return err
		}
		logInfo("Report written to %s", outPath)
		return nil
	}
	return output.Render(os.Stdout, format, report)
}

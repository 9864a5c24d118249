package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/output"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score a single property",
	Long: `Score one property by id. The property detail must already be in the
data directory unless --fetch is given. A stored analysis is returned as is.

Examples:
  leilao analyze --estado GO --cidade "RIO VERDE" --id 1444409748105
  leilao analyze --estado GO --cidade "RIO VERDE" --id 1444409748105 --fetch`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	flags := analyzeCmd.Flags()
	flags.String("estado", "", "state (UF)")
	flags.String("cidade", "", "city")
	flags.String("id", "", "property id (digits only)")
	flags.Bool("fetch", false, "scrape the property detail and deed first")
	flags.String("format", "json", "output format: json, yaml, text")

	_ = analyzeCmd.MarkFlagRequired("estado")
	_ = analyzeCmd.MarkFlagRequired("cidade")
	_ = analyzeCmd.MarkFlagRequired("id")
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	flags := cmd.Flags()
	state, _ := flags.GetString("estado")
	city, _ := flags.GetString("cidade")
	id, _ := flags.GetString("id")
	fetch, _ := flags.GetBool("fetch")
	formatStr, _ := flags.GetString("format")

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	key := domain.RunParams{State: state, City: city}.Normalize().Key()

	store := openStore()
	if fetch {
		sc := newScraper()
		defer sc.Close()
		d, err := sc.FetchDetail(ctx, key, id)
		if err != nil {
			return fmt.Errorf("fetching detail %s: %w", id, err)
		}
		if err := store.WriteDetail(d); err != nil {
			return err
		}
		logInfo("Detail of %s saved (deed: %t)", id, d.HasDeed())
	}

	an, err := newAnalyzer(ctx, store)
	if err != nil {
		return err
	}
	a, err := an.Analyze(ctx, key, id)
	if err != nil {
		return err
	}

	if format == output.FormatText {
		return output.Render(os.Stdout, format, []domain.PropertySummary{domain.Summarize(id, a)})
	}
	return output.Render(os.Stdout, format, a)
}

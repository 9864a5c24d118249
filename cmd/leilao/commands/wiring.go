package commands

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/jmylchreest/leilao/internal/analyzer"
	"github.com/jmylchreest/leilao/internal/artifact"
	"github.com/jmylchreest/leilao/internal/logger"
	"github.com/jmylchreest/leilao/internal/ocr"
	"github.com/jmylchreest/leilao/internal/pipeline"
	"github.com/jmylchreest/leilao/internal/scorer"
	"github.com/jmylchreest/leilao/internal/scraper"
	"github.com/jmylchreest/leilao/pkg/cleaner"
	"github.com/jmylchreest/leilao/pkg/llm"
)

func openStore() *artifact.Store {
	return artifact.New(viper.GetString("data_dir"))
}

func newProvider() (llm.Provider, error) {
	name := viper.GetString("provider")
	if name == "" {
		name = llm.DetectProvider()
	}
	if name == "" {
		return nil, fmt.Errorf("no LLM provider configured: set OPENAI_API_KEY or ANTHROPIC_API_KEY (available: %v)", llm.AvailableProviders())
	}

	cfg := llm.DefaultProviderConfig()
	cfg.APIKey = viper.GetString("api_key")
	cfg.BaseURL = viper.GetString("base_url")
	cfg.Model = viper.GetString("model")
	cfg.MaxRetries = viper.GetInt("max_retries")
	cfg.Timeout = viper.GetDuration("timeouts.scorer")

	p, err := llm.NewProvider(name, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("llm provider ready", "provider", p.Name(), "model", p.Model())
	return llm.WithObserver(p, llm.LogObserver{}), nil
}

func newExtractor() *ocr.Extractor {
	cfg := ocr.DefaultConfig()
	cfg.Language = viper.GetString("ocr.language")
	cfg.MaxPages = viper.GetInt("ocr.max_pages")
	if err := ocr.CheckAvailable(); err != nil {
		logger.Warn("deed text extraction will degrade", "error", err)
	}
	return ocr.New(cfg)
}

func newScraper() *scraper.Caixa {
	cfg := scraper.DefaultConfig()
	if v := viper.GetString("scraper.base_url"); v != "" {
		cfg.BaseURL = v
	}
	cfg.Headless = viper.GetBool("scraper.headless")
	cfg.ChromePath = viper.GetString("scraper.chrome_path")
	cfg.RequestInterval = viper.GetDuration("scraper.request_interval")
	cfg.StepDelay = viper.GetDuration("scraper.step_delay")
	cfg.PageTimeout = viper.GetDuration("scraper.page_timeout")
	return scraper.NewCaixa(cfg)
}

func newAnalyzer(ctx context.Context, store *artifact.Store) (*analyzer.Analyzer, error) {
	provider, err := newProvider()
	if err != nil {
		return nil, err
	}
	ext := newExtractor()

	ref, err := scorer.LoadReference(ctx, viper.GetString("reference_document"), ext, viper.GetInt("reference_max_chars"))
	if err != nil {
		return nil, fmt.Errorf("loading reference document: %w", err)
	}

	cl, err := cleaner.ByName(viper.GetString("cleaner"))
	if err != nil {
		return nil, err
	}
	logger.Debug("detail cleaner", "cleaner", cl.Name())

	scCfg := scorer.DefaultConfig()
	scCfg.Timeout = viper.GetDuration("timeouts.scorer")

	return analyzer.New(store, scorer.New(provider, scCfg), ext, analyzer.Config{
		DeedMaxChars: viper.GetInt("deed_max_chars"),
		Reference:    ref,
		Cleaner:      cl,
	}), nil
}

func pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.ListingTimeout = viper.GetDuration("timeouts.listing")
	cfg.DetailsTimeout = viper.GetDuration("timeouts.details")
	cfg.AnalysisDelay = viper.GetDuration("analysis_delay")
	return cfg
}

// newPipeline wires a pipeline and returns the scraper so the caller can
// close the browser.
func newPipeline(ctx context.Context, store *artifact.Store) (*pipeline.Pipeline, *scraper.Caixa, error) {
	an, err := newAnalyzer(ctx, store)
	if err != nil {
		return nil, nil, err
	}
	sc := newScraper()
	return pipeline.New(sc, store, an, pipelineConfig()), sc, nil
}

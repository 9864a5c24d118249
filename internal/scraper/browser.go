package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/leilao/internal/domain"
	"github.com/jmylchreest/leilao/internal/logger"
)

var propertyIDPattern = regexp.MustCompile(`^[0-9]+$`)

// Browser runs the search form flow in headless Chrome. Every call starts a
// fresh browser session, so no cookies or form state leak between pages.
type Browser struct {
	cfg      Config
	allocCtx context.Context
	cancel   context.CancelFunc
	limiter  *rate.Limiter
}

// NewBrowser starts a browser allocator. Chrome itself is launched lazily on
// the first page.
func NewBrowser(cfg Config, limiter *rate.Limiter) *Browser {
	cfg = cfg.withDefaults()
	chromePath := cfg.ChromePath
	if chromePath == "" {
		chromePath = FindChromePath()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	logger.Debug("browser allocator configured",
		"headless", cfg.Headless,
		"chrome", chromePath,
		"step_delay", cfg.StepDelay)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Browser{cfg: cfg, allocCtx: allocCtx, cancel: cancel, limiter: limiter}
}

// ListingHTML returns the outer HTML of the paginated property list for key.
func (b *Browser) ListingHTML(ctx context.Context, key domain.ListingKey) (string, error) {
	var html string
	actions := append(b.searchActions(key),
		chromedp.OuterHTML(selListing, &html, chromedp.ByQuery),
	)
	if err := b.run(ctx, "listing", actions); err != nil {
		return "", err
	}
	return html, nil
}

// DetailHTML opens the detail panel of property id and returns its outer HTML.
func (b *Browser) DetailHTML(ctx context.Context, key domain.ListingKey, id string) (string, error) {
	if !propertyIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: invalid property id %q", domain.ErrNotFound, id)
	}

	var html string
	actions := append(b.searchActions(key),
		chromedp.Evaluate("detalhe_imovel("+id+")", nil),
		chromedp.WaitReady(selDetail, chromedp.ByQuery),
		chromedp.OuterHTML(selDetail, &html, chromedp.ByQuery),
	)
	if err := b.run(ctx, "detail "+id, actions); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	return nil
}

// searchActions fills the state and city selects and walks the two form
// steps until the property list is rendered.
func (b *Browser) searchActions(key domain.ListingKey) []chromedp.Action {
	var cityReady bool
	return []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": acceptLanguage}),
		chromedp.Navigate(b.cfg.SearchURL()),
		chromedp.WaitReady(selState, chromedp.ByQuery),
		chromedp.Sleep(b.cfg.StepDelay),
		selectByText(selState, key.State),
		chromedp.Poll(optionPresentScript(selCity, key.City), &cityReady,
			chromedp.WithPollingTimeout(b.cfg.PageTimeout)),
		selectByText(selCity, key.City),
		chromedp.Sleep(b.cfg.StepDelay),
		chromedp.Click(btnNext0, chromedp.ByQuery),
		chromedp.Sleep(b.cfg.StepDelay),
		chromedp.Click(btnNext1, chromedp.ByQuery),
		chromedp.WaitReady(selListing, chromedp.ByQuery),
		chromedp.Sleep(b.cfg.StepDelay),
	}
}

// run executes actions in a new tab bounded by the page timeout and by ctx.
func (b *Browser) run(ctx context.Context, what string, actions []chromedp.Action) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	// Allocate on tabCtx so the page timeout below does not tear the tab
	// down before diagnose can inspect it.
	if err := chromedp.Run(tabCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: starting browser: %w", domain.ErrScrape, err)
	}

	runCtx, cancelRun := context.WithTimeout(tabCtx, b.cfg.PageTimeout)
	defer cancelRun()

	start := time.Now()
	logger.Debug("browser session starting", "page", what)
	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		logger.Debug("browser session complete", "page", what, "duration", time.Since(start))
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	cause := err
	if reason, blocked := b.diagnose(tabCtx); blocked {
		cause = fmt.Errorf("%s: %w", reason, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrScrape, what, cause)
}

// diagnose grabs the current document and checks it for a block page.
func (b *Browser) diagnose(tabCtx context.Context) (string, bool) {
	ctx, cancel := context.WithTimeout(tabCtx, 10*time.Second)
	defer cancel()
	var html string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", false
	}
	return DetectBlock(html)
}

// selectByText picks the option whose visible text matches text
// (case-insensitive) and fires the change event the page listens to.
func selectByText(sel, text string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var ok bool
		if err := chromedp.Evaluate(selectScript(sel, text), &ok).Do(ctx); err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: option %q not found in %s", domain.ErrNotFound, text, sel)
		}
		return nil
	})
}

func selectScript(sel, text string) string {
	return fmt.Sprintf(`(function (sel, text) {
  const el = document.querySelector(sel);
  if (!el) { return false; }
  const want = text.trim().toUpperCase();
  for (let i = 0; i < el.options.length; i++) {
    if (el.options[i].text.trim().toUpperCase() === want) {
      el.selectedIndex = i;
      el.dispatchEvent(new Event("change", { bubbles: true }));
      return true;
    }
  }
  return false;
})(%s, %s)`, jsString(sel), jsString(text))
}

func optionPresentScript(sel, text string) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s + " option")).some(o => o.text.trim().toUpperCase() === %s.trim().toUpperCase())`,
		jsString(sel), jsString(text))
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

package daiwa

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"

	"hotel-monitor/config"
	"hotel-monitor/models"
	"hotel-monitor/utils"
)

// Browser is a single headless Chrome tab reused for every request of a run
type Browser struct {
	cfg    *config.Config
	logger *utils.Logger

	tabCtx context.Context
	cancel context.CancelFunc
}

// NewBrowser creates a Browser; call Start before use
func NewBrowser(cfg *config.Config, logger *utils.Logger) *Browser {
	return &Browser{cfg: cfg, logger: logger}
}

// Start launches Chrome and opens the tab. Failing here is the one fault that
// stops a run before any date is checked.
func (b *Browser) Start(ctx context.Context) error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.cfg.Scraper.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("log-level", "3"), // suppress Chrome logs
		chromedp.UserAgent(b.cfg.Scraper.UserAgent),
		chromedp.WindowSize(1280, 900),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			b.logger.Debug("[chrome] "+format, args...)
		}),
	)

	b.tabCtx = tabCtx
	b.cancel = func() {
		cancelTab()
		cancelAlloc()
	}

	// an empty Run forces the browser to actually start
	if err := chromedp.Run(tabCtx); err != nil {
		b.Close()
		return errors.Wrap(err, "starting browser")
	}
	b.logger.Info("Browser started (headless=%v)", b.cfg.Scraper.Headless)
	return nil
}

// Close shuts the tab and the browser down
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

func (b *Browser) ready() error {
	if b.tabCtx == nil {
		return errors.New("browser not started")
	}
	return nil
}

// Navigate loads url, bounded by the configured navigation timeout
func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.logger.Debug("Navigating: %s", url)

	navCtx, cancel := context.WithTimeout(b.tabCtx, b.cfg.NavigationTimeout())
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return errors.Wrap(err, "navigate failed")
	}
	return nil
}

// WaitStable gives client-side rendering time to settle, then waits briefly for the body
func (b *Browser) WaitStable(ctx context.Context, d time.Duration) error {
	if err := b.ready(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chromedp.Run(b.tabCtx, chromedp.Sleep(d)); err != nil {
		return errors.Wrap(err, "stabilization wait failed")
	}

	waitCtx, cancel := context.WithTimeout(b.tabCtx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		b.logger.Warn("  Page body not ready in time, continuing anyway")
	}
	return nil
}

// SwitchCurrency clicks the on-page currency selector entry matching symbol.
// It returns false when no matching control was found.
func (b *Browser) SwitchCurrency(ctx context.Context, symbol string) (bool, error) {
	if err := b.ready(); err != nil {
		return false, err
	}
	arg, err := json.Marshal(symbol)
	if err != nil {
		return false, errors.Wrap(err, "encoding currency symbol")
	}

	var switched bool
	err = chromedp.Run(b.tabCtx,
		chromedp.Evaluate(fmt.Sprintf(switchCurrencyJS, arg), &switched),
	)
	if err != nil {
		return false, errors.Wrap(err, "currency switch JS failed")
	}
	if switched {
		// the switch re-renders prices
		_ = chromedp.Run(b.tabCtx, chromedp.Sleep(3*time.Second))
	}
	return switched, nil
}

// Content extracts the page text and every element region mentioning a keyword
func (b *Browser) Content(ctx context.Context, keywords []string) (*models.PageContent, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	arg, err := json.Marshal(keywords)
	if err != nil {
		return nil, errors.Wrap(err, "encoding keywords")
	}

	var page models.PageContent
	if err := chromedp.Run(b.tabCtx, chromedp.Evaluate(fmt.Sprintf(contentJS, arg), &page)); err != nil {
		return nil, errors.Wrap(err, "content JS failed")
	}
	b.logger.Debug("  Page text %d chars, %d keyword regions", len([]rune(page.FullText)), len(page.Regions))
	return &page, nil
}

const switchCurrencyJS = `
(function(symbol) {
	var wanted = symbol.toLowerCase();

	// Strategy 1: a <select> with a matching option
	var selects = document.querySelectorAll('select');
	for (var i = 0; i < selects.length; i++) {
		var opts = selects[i].options;
		for (var j = 0; j < opts.length; j++) {
			var t = (opts[j].text + ' ' + opts[j].value).toLowerCase();
			if (t.indexOf(wanted) !== -1) {
				selects[i].value = opts[j].value;
				selects[i].dispatchEvent(new Event('change', {bubbles: true}));
				return true;
			}
		}
	}

	// Strategy 2: a clickable entry in a currency menu
	var items = document.querySelectorAll('[class*="currency"] a, [class*="currency"] button, [class*="currency"] li, [data-currency]');
	for (var k = 0; k < items.length; k++) {
		var txt = (items[k].innerText || items[k].getAttribute('data-currency') || '').trim().toLowerCase();
		if (txt && txt.indexOf(wanted) !== -1) {
			items[k].click();
			return true;
		}
	}
	return false;
})(%s)
`

const contentJS = `
(function(keywords) {
	var lowered = keywords.map(function(k) { return k.toLowerCase(); });
	function hasKeyword(t) {
		t = t.toLowerCase();
		return lowered.some(function(k) { return k && t.indexOf(k) !== -1; });
	}
	function partsOf(el) {
		var parts = [];
		var all = el.querySelectorAll('*');
		for (var i = 0; i < all.length && parts.length < 300; i++) {
			var t = (all[i].innerText || '').trim();
			if (t && t.length <= 200) parts.push(t);
		}
		return parts;
	}

	var regions = [];
	var nodes = document.querySelectorAll('section, article, li, tr, table, div');
	for (var i = 0; i < nodes.length && regions.length < 200; i++) {
		var text = (nodes[i].innerText || '').trim();
		if (!text || text.length > 6000 || !hasKeyword(text)) continue;
		regions.push({text: text, parts: partsOf(nodes[i])});
	}

	var body = document.body ? document.body.innerText : '';
	if (body && body.length <= 20000 && hasKeyword(body)) {
		regions.push({text: body.trim(), parts: []});
	}

	return {url: location.href, fullText: body, regions: regions};
})(%s)
`

package services

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"hotel-monitor/models"
	"hotel-monitor/utils"
)

// PageProvider is the browser session the monitor drives. One provider is one
// tab reused for every date, so calls must never overlap.
type PageProvider interface {
	Navigate(ctx context.Context, url string) error
	WaitStable(ctx context.Context, d time.Duration) error
	SwitchCurrency(ctx context.Context, symbol string) (bool, error)
	Content(ctx context.Context, keywords []string) (*models.PageContent, error)
}

// URLBuilder produces the results-page URL for one stay in one display currency
type URLBuilder func(checkin, checkout string, currency models.Currency) string

// step is the outcome of one currency attempt
type step int

const (
	stepAccept step = iota
	stepContinue
)

// classify decides whether a record settles the date for the requested currency
func classify(rec models.CheckinRecord, requested models.Currency) step {
	if !rec.IsAvailable {
		if rec.Error == "" {
			// sold out reads the same in every currency
			return stepAccept
		}
		return stepContinue
	}
	if rec.HasPrice() && rec.Currency == requested {
		return stepAccept
	}
	return stepContinue
}

// ResolverOptions tunes the per-attempt behaviour of a Resolver
type ResolverOptions struct {
	Keywords       []string
	Currencies     []models.Currency // display currency first, then fallbacks
	StabilizeDelay time.Duration
	MaxRetries     int
	RetryBase      time.Duration
}

// Resolver walks the currency list for one date until a record is accepted
type Resolver struct {
	provider  PageProvider
	extractor *Extractor
	buildURL  URLBuilder
	opts      ResolverOptions
	logger    *utils.Logger
}

// NewResolver creates a Resolver
func NewResolver(provider PageProvider, extractor *Extractor, buildURL URLBuilder, opts ResolverOptions, logger *utils.Logger) *Resolver {
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	return &Resolver{
		provider:  provider,
		extractor: extractor,
		buildURL:  buildURL,
		opts:      opts,
		logger:    logger,
	}
}

// Resolve returns the best record for one stay. An error is returned only when
// not a single attempt produced page content.
func (r *Resolver) Resolve(ctx context.Context, checkin, checkout string) (models.CheckinRecord, error) {
	if len(r.opts.Currencies) == 0 {
		return models.CheckinRecord{}, errors.New("no currencies configured")
	}

	var last models.CheckinRecord
	obtained := false

	for i, cur := range r.opts.Currencies {
		page, err := r.load(ctx, checkin, checkout, cur, i > 0)
		if err != nil {
			if !obtained {
				return models.CheckinRecord{}, errors.Wrapf(err, "loading %s in %s", checkin, cur)
			}
			r.logger.Warn("  %s: %s attempt failed, keeping previous result: %v", checkin, cur, err)
			return last, nil
		}

		rec := r.extractor.Extract(page, ExtractContext{
			Date:      checkin,
			Keywords:  r.opts.Keywords,
			Requested: cur,
		})
		last, obtained = rec, true
		r.logger.Debug("  %s [%s]: available=%v price=%s err=%q",
			checkin, cur, rec.IsAvailable, FormatPrice(rec.Price, rec.Currency), rec.Error)

		if classify(rec, cur) == stepAccept {
			return rec, nil
		}
		if i < len(r.opts.Currencies)-1 {
			r.logger.Info("  %s: no %s price yet, trying next currency", checkin, cur)
		}
	}

	r.logger.Warn("  %s: currencies exhausted, keeping last result", checkin)
	return last, nil
}

// load navigates to the results page in one currency and reads it. Fallback
// attempts also try the on-page currency switcher, whose failure is not fatal.
func (r *Resolver) load(ctx context.Context, checkin, checkout string, cur models.Currency, fallback bool) (*models.PageContent, error) {
	url := r.buildURL(checkin, checkout, cur)

	err := utils.RetryWithBackoff(ctx, r.opts.MaxRetries, r.opts.RetryBase, func() error {
		return r.provider.Navigate(ctx, url)
	}, r.logger)
	if err != nil {
		return nil, err
	}
	if err := r.provider.WaitStable(ctx, r.opts.StabilizeDelay); err != nil {
		return nil, errors.Wrap(err, "waiting for page")
	}

	if fallback {
		ok, err := r.provider.SwitchCurrency(ctx, cur.Symbol())
		switch {
		case err != nil:
			r.logger.Warn("  currency switch to %s failed: %v", cur, err)
		case !ok:
			r.logger.Debug("  currency switcher for %s not found", cur)
		}
	}

	return r.provider.Content(ctx, r.opts.Keywords)
}

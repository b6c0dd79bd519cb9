// File: internal/publisher/publisher.go

// Package publisher orchestrates one publish attempt end to end: local
// precondition checks, browser acquisition, form population in a fixed order,
// taxonomy placement, photo ingestion and final submission. It returns exactly
// one structured outcome per attempt and guarantees the page it acquired is
// closed on every exit path.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wardrobelabs/relist/api/schemas"
	"github.com/wardrobelabs/relist/internal/config"
	"github.com/wardrobelabs/relist/internal/locator"
	"github.com/wardrobelabs/relist/internal/navigator"
	"github.com/wardrobelabs/relist/internal/photos"
	"github.com/wardrobelabs/relist/internal/taxonomy"
)

const (
	// minTitleLength and minDescriptionLength mirror the marketplace's own
	// validation; attempts that would be rejected server-side fail locally
	// before a browser is touched.
	minTitleLength       = 5
	minDescriptionLength = 5

	// maxCategoryAttempts bounds how many ranked candidates the orchestrator
	// walks when a taxonomy path has a dead segment.
	maxCategoryAttempts = 3

	submitWaitTimeout = 45 * time.Second
	urlPollInterval   = 500 * time.Millisecond
)

// listingIDPattern extracts the numeric listing id from a listing-detail URL.
var listingIDPattern = regexp.MustCompile(`/items/(\d+)`)

// conditionLabels translates normalized caller condition values into the
// option labels the form displays. Unknown values are passed through verbatim.
var conditionLabels = map[string]string{
	"new_with_tags":    "New with tags",
	"new with tags":    "New with tags",
	"new":              "New without tags",
	"new_without_tags": "New without tags",
	"new without tags": "New without tags",
	"very_good":        "Very good",
	"very good":        "Very good",
	"good":             "Good",
	"satisfactory":     "Satisfactory",
	"fair":             "Satisfactory",
}

// Page is the live-tab capability one attempt drives. *browser.Page satisfies
// it; tests substitute fakes.
type Page interface {
	locator.Surface
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	ApplyCookies(ctx context.Context, cookies []schemas.Cookie) error
	WaitForResponse(ctx context.Context, fragment string, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// PageFactory hands out isolated pages. The factory must not be invoked for
// attempts that fail local precondition checks.
type PageFactory interface {
	NewPage(ctx context.Context) (Page, error)
}

// FieldDriver is the locator capability the orchestrator uses to populate the
// form. *locator.Locator satisfies it.
type FieldDriver interface {
	Locate(ctx context.Context, scope locator.Scope, target locator.Target) (*locator.Element, error)
	Click(ctx context.Context, scope locator.Scope, target locator.Target) (*locator.Element, error)
	ClickTopLevelOption(ctx context.Context, scope locator.Scope, label string) (*locator.Element, error)
	Type(ctx context.Context, scope locator.Scope, target locator.Target, text string) (*locator.Element, error)
}

// PhotoIngestor uploads a listing's images into the open form.
type PhotoIngestor interface {
	Ingest(ctx context.Context, imageURLs []string) (*photos.Result, error)
	Close() error
}

// CategoryResolver ranks taxonomy candidates for free-text category input.
// *taxonomy.Resolver satisfies it.
type CategoryResolver interface {
	Resolve(rawCategoryText, genderHint string) []taxonomy.ScoredCandidate
}

// Publisher runs publish attempts. It is safe for concurrent use; each
// attempt owns its page exclusively.
type Publisher struct {
	cfg      *config.Config
	resolver CategoryResolver
	pages    PageFactory
	logger   *zap.Logger

	// Seams for tests: real constructors by default.
	newDriver   func(surface locator.Surface, logger *zap.Logger) FieldDriver
	newIngestor func(loc photos.InputLocator, surface locator.Surface, logger *zap.Logger) PhotoIngestor
	sleep       func(ctx context.Context, d time.Duration) error
}

// New builds a publisher over a page factory and a category resolver.
func New(cfg *config.Config, resolver CategoryResolver, pages PageFactory, logger *zap.Logger) *Publisher {
	p := &Publisher{
		cfg:      cfg,
		resolver: resolver,
		pages:    pages,
		logger:   logger.Named("publisher"),
	}
	p.newDriver = func(surface locator.Surface, l *zap.Logger) FieldDriver {
		return locator.New(surface, l)
	}
	p.newIngestor = func(loc photos.InputLocator, surface locator.Surface, l *zap.Logger) PhotoIngestor {
		return photos.NewIngestor(cfg.Photos, loc, surface, l)
	}
	p.sleep = sleepCtx
	return p
}

// Publish runs one attempt for the given listing under the given authenticated
// session. It always returns a non-nil outcome; the error mirrors the outcome
// for callers that propagate failures as errors.
func (p *Publisher) Publish(ctx context.Context, listing *schemas.Listing, session *schemas.Session) (*schemas.PublishOutcome, error) {
	attemptID := uuid.New().String()
	logger := p.logger.With(zap.String("attempt_id", attemptID))
	logger.Info("Publish attempt started.",
		zap.String("title", listing.Title),
		zap.String("identity", session.Identity))

	outcome := &schemas.PublishOutcome{AttemptID: attemptID}

	// Local preconditions fail before any browser resource is acquired.
	if reason := p.checkPreconditions(listing, session); reason != "" {
		outcome.Status = schemas.StatusSubmissionRejected
		outcome.Diagnostic = reason
		logger.Warn("Attempt rejected locally.", zap.String("reason", reason))
		return outcome, errors.New(reason)
	}

	candidates := p.resolver.Resolve(listing.Category, listing.GenderHint)

	page, err := p.pages.NewPage(ctx)
	if err != nil {
		p.fail(outcome, schemas.StatusTimeout, fmt.Sprintf("browser acquisition failed: %v", err))
		return outcome, err
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			logger.Warn("Error closing page.", zap.Error(closeErr))
		}
	}()

	if err := p.runAttempt(ctx, logger, page, listing, session, candidates, outcome); err != nil {
		p.snapshot(ctx, page, outcome, logger)
		return outcome, err
	}

	outcome.Status = schemas.StatusSuccess
	logger.Info("Publish attempt succeeded.",
		zap.String("final_url", outcome.FinalURL),
		zap.String("listing_id", outcome.ListingID))
	return outcome, nil
}

// checkPreconditions returns a rejection reason, or "" when the listing is
// locally valid.
func (p *Publisher) checkPreconditions(listing *schemas.Listing, session *schemas.Session) string {
	if utf8.RuneCountInString(strings.TrimSpace(listing.Title)) < minTitleLength {
		return fmt.Sprintf("title must be at least %d characters", minTitleLength)
	}
	if utf8.RuneCountInString(strings.TrimSpace(listing.Description)) < minDescriptionLength {
		return fmt.Sprintf("description must be at least %d characters", minDescriptionLength)
	}
	if listing.Price <= 0 {
		return "price must be positive"
	}
	if len(session.Cookies) == 0 {
		return "session carries no cookies"
	}
	return ""
}

// runAttempt drives the browser through the whole form. On failure the
// outcome's status and diagnostic are already populated.
func (p *Publisher) runAttempt(
	ctx context.Context,
	logger *zap.Logger,
	page Page,
	listing *schemas.Listing,
	session *schemas.Session,
	candidates []taxonomy.ScoredCandidate,
	outcome *schemas.PublishOutcome,
) error {
	if err := page.ApplyCookies(ctx, session.Cookies); err != nil {
		p.fail(outcome, schemas.StatusTimeout, fmt.Sprintf("cookie injection failed: %v", err))
		return err
	}

	if err := page.Navigate(ctx, p.cfg.Marketplace.NewListingURL()); err != nil {
		return p.classify(outcome, err, "navigation to listing form failed")
	}
	// A refresh is required for the injected cookies to take effect.
	if err := page.Reload(ctx); err != nil {
		return p.classify(outcome, err, "post-cookie reload failed")
	}

	driver := p.newDriver(page, logger)

	// Scalar fields first: they are independent of taxonomy state.
	if err := p.fillScalarFields(ctx, driver, listing); err != nil {
		return p.classify(outcome, err, "scalar field population failed")
	}

	if err := p.placeCategory(ctx, logger, driver, page, candidates, outcome); err != nil {
		return err
	}

	// Category-dependent fields only render after placement.
	if err := p.fillDependentFields(ctx, logger, driver, listing); err != nil {
		return p.classify(outcome, err, "category-dependent field population failed")
	}

	// Photos go last: uploads are the slowest step and the submit control
	// stays disabled until at least one image is attached.
	if err := p.ingestPhotos(ctx, logger, driver, page, listing, outcome); err != nil {
		return err
	}

	return p.submit(ctx, logger, driver, page, outcome)
}

// fillScalarFields types title, description and price.
func (p *Publisher) fillScalarFields(ctx context.Context, driver FieldDriver, listing *schemas.Listing) error {
	if _, err := driver.Type(ctx, locator.ScopeUploadForm, locator.Field(locator.KindTitle), listing.Title); err != nil {
		return err
	}
	if _, err := driver.Type(ctx, locator.ScopeUploadForm, locator.Field(locator.KindDescription), listing.Description); err != nil {
		return err
	}
	price := strconv.FormatFloat(listing.Price, 'f', 2, 64)
	_, err := driver.Type(ctx, locator.ScopeUploadForm, locator.Field(locator.KindPrice), price)
	return err
}

// placeCategory opens the category selector and walks ranked candidates until
// one full path selects. A dead segment moves on to the next candidate; page
// integrity failures abort the attempt outright.
func (p *Publisher) placeCategory(
	ctx context.Context,
	logger *zap.Logger,
	driver FieldDriver,
	page Page,
	candidates []taxonomy.ScoredCandidate,
	outcome *schemas.PublishOutcome,
) error {
	nav := navigator.New(navigator.Config{
		PageToken:      p.cfg.Marketplace.NewListingPath,
		SignalFragment: p.cfg.Marketplace.BrandEndpoint,
		SignalTimeout:  p.cfg.Network.SignalTimeout,
	}, driver, page, logger)

	attempts := len(candidates)
	if attempts > maxCategoryAttempts {
		attempts = maxCategoryAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		candidate := candidates[i]
		logger.Info("Attempting taxonomy placement.",
			zap.String("path", candidate.Node.Path()),
			zap.Int("score", candidate.Score))

		if _, err := driver.Click(ctx, locator.ScopeUploadForm, locator.Field(locator.KindCategoryOpener)); err != nil {
			return p.classify(outcome, err, "category selector did not open")
		}

		err := nav.Select(ctx, candidate.Node.Segments)
		if err == nil {
			outcome.FailingLevel = 0
			outcome.FailingSegment = ""
			return nil
		}
		lastErr = err

		var abort *navigator.AbortError
		if errors.As(err, &abort) && abort.Reason == navigator.ReasonOptionNotFound {
			// This path has a dead segment in the live catalog; the next
			// ranked candidate may still work.
			logger.Warn("Taxonomy path dead-ended; trying next candidate.",
				zap.String("path", candidate.Node.Path()),
				zap.Int("level", abort.Level),
				zap.String("segment", abort.Segment))
			outcome.FailingLevel = abort.Level
			outcome.FailingSegment = abort.Segment
			continue
		}
		break
	}

	return p.classifyNavigation(outcome, lastErr)
}

// fillDependentFields handles brand, size, condition and color. Empty caller
// values are skipped; populated ones must resolve.
func (p *Publisher) fillDependentFields(ctx context.Context, logger *zap.Logger, driver FieldDriver, listing *schemas.Listing) error {
	if listing.Brand != "" {
		if _, err := driver.Type(ctx, locator.ScopeUploadForm, locator.Field(locator.KindBrand), listing.Brand); err != nil {
			return err
		}
		// The brand field is a type-ahead; picking the suggestion is best
		// effort, the typed text stands on its own.
		if _, err := driver.Click(ctx, locator.ScopeUploadForm, locator.Option(listing.Brand)); err != nil {
			logger.Debug("Brand suggestion not clickable; keeping typed value.", zap.Error(err))
		}
	}

	type optionField struct {
		kind  locator.TargetKind
		value string
	}
	fields := []optionField{
		{locator.KindSize, listing.Size},
		{locator.KindCondition, conditionLabel(listing.Condition)},
		{locator.KindColor, listing.Color},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := driver.Click(ctx, locator.ScopeUploadForm, locator.Field(f.kind)); err != nil {
			return err
		}
		if _, err := driver.Click(ctx, locator.ScopePage, locator.Option(f.value)); err != nil {
			return err
		}
	}
	return nil
}

// ingestPhotos uploads the listing's images. Partial upload is tolerated; zero
// uploads from a non-empty list fails the attempt.
func (p *Publisher) ingestPhotos(
	ctx context.Context,
	logger *zap.Logger,
	driver FieldDriver,
	page Page,
	listing *schemas.Listing,
	outcome *schemas.PublishOutcome,
) error {
	if len(listing.ImageURLs) == 0 {
		return nil
	}

	ingestor := p.newIngestor(driver, page, logger)
	defer func() {
		if err := ingestor.Close(); err != nil {
			logger.Debug("Error closing photo ingestor.", zap.Error(err))
		}
	}()

	result, err := ingestor.Ingest(ctx, listing.ImageURLs)
	if err != nil {
		return p.classify(outcome, err, "photo ingestion failed")
	}
	if result.Uploaded == 0 {
		diag := fmt.Sprintf("none of %d images uploaded", len(listing.ImageURLs))
		if len(result.Failures) > 0 {
			diag += ": " + result.Failures[0].Reason
		}
		p.fail(outcome, schemas.StatusPhotoIngestionFailed, diag)
		return errors.New(diag)
	}
	if len(result.Failures) > 0 {
		logger.Warn("Some images failed to upload; continuing with partial set.",
			zap.Int("uploaded", result.Uploaded),
			zap.Int("failed", len(result.Failures)))
	}
	return nil
}

// submit resolves the submit control, rejects a disabled one, clicks it and
// waits for a success URL.
func (p *Publisher) submit(ctx context.Context, logger *zap.Logger, driver FieldDriver, page Page, outcome *schemas.PublishOutcome) error {
	el, err := driver.Locate(ctx, locator.ScopeUploadForm, locator.Field(locator.KindSubmit))
	if err != nil {
		return p.classify(outcome, err, "submit control not found")
	}

	if disabled, err := p.submitDisabled(ctx, page, el.Selector); err == nil && disabled {
		// The form disables submission while required inputs are missing,
		// most commonly when zero photos attached.
		diag := "submit control is disabled; the form considers required inputs missing"
		p.fail(outcome, schemas.StatusSubmissionRejected, diag)
		return errors.New(diag)
	}

	if err := page.Click(ctx, el.Selector); err != nil {
		return p.classify(outcome, err, "submit click failed")
	}
	logger.Info("Form submitted; waiting for result page.")

	return p.awaitSuccess(ctx, page, outcome)
}

// submitDisabled reads the disabled property of the resolved submit control.
func (p *Publisher) submitDisabled(ctx context.Context, page Page, selector string) (bool, error) {
	js := fmt.Sprintf(`(() => { const el = document.querySelector(%q); return !el || !!el.disabled; })()`, selector)
	var disabled bool
	if err := page.Eval(ctx, js, &disabled); err != nil {
		return false, err
	}
	return disabled, nil
}

// awaitSuccess polls the page URL until it matches a configured success
// pattern, then extracts the listing id where the URL shape allows it.
func (p *Publisher) awaitSuccess(ctx context.Context, page Page, outcome *schemas.PublishOutcome) error {
	deadline := time.Now().Add(submitWaitTimeout)
	for {
		if time.Now().After(deadline) {
			diag := fmt.Sprintf("no success URL observed within %s of submission", submitWaitTimeout)
			p.fail(outcome, schemas.StatusTimeout, diag)
			return errors.New(diag)
		}

		url, err := page.Location(ctx)
		if err != nil {
			return p.classify(outcome, err, "could not read page location after submit")
		}

		for _, pattern := range p.cfg.Marketplace.SuccessPatterns {
			// The listing-creation page itself matches "/items/"; only a URL
			// that moved off the form counts.
			if strings.Contains(url, p.cfg.Marketplace.NewListingPath) {
				continue
			}
			if strings.Contains(url, pattern) {
				outcome.FinalURL = url
				outcome.ListingID = extractListingID(url)
				if outcome.ListingID == "" {
					// Catalog-style success pages carry no id in the URL; a
					// placeholder keeps the outcome unambiguous.
					outcome.ListingID = "pending:" + outcome.AttemptID
				}
				return nil
			}
		}

		if err := p.sleep(ctx, urlPollInterval); err != nil {
			return p.classify(outcome, err, "wait for success URL interrupted")
		}
	}
}

// classify maps a pipeline error onto an outcome status.
func (p *Publisher) classify(outcome *schemas.PublishOutcome, err error, prefix string) error {
	diag := fmt.Sprintf("%s: %v", prefix, err)

	var notFound *locator.NotFoundError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		p.fail(outcome, schemas.StatusTimeout, diag)
	case errors.As(err, &notFound):
		p.fail(outcome, schemas.StatusFieldResolutionFailed, diag)
	default:
		p.fail(outcome, schemas.StatusTimeout, diag)
	}
	return err
}

// classifyNavigation maps a taxonomy placement failure onto an outcome status
// and records the failing level and segment.
func (p *Publisher) classifyNavigation(outcome *schemas.PublishOutcome, err error) error {
	var abort *navigator.AbortError
	if !errors.As(err, &abort) {
		return p.classify(outcome, err, "taxonomy placement failed")
	}

	outcome.FailingLevel = abort.Level
	outcome.FailingSegment = abort.Segment
	diag := abort.Error()

	switch abort.Reason {
	case navigator.ReasonWrongPage, navigator.ReasonIntegrityViolation:
		p.fail(outcome, schemas.StatusNavigationIntegrityViolation, diag)
	case navigator.ReasonConfirmationMissing:
		p.fail(outcome, schemas.StatusTimeout, diag)
	default:
		p.fail(outcome, schemas.StatusFieldResolutionFailed, diag)
	}
	return err
}

func (p *Publisher) fail(outcome *schemas.PublishOutcome, status schemas.PublishStatus, diagnostic string) {
	outcome.Status = status
	outcome.Diagnostic = diagnostic
}

// snapshot captures a best-effort screenshot into the outcome. A failed
// capture only logs.
func (p *Publisher) snapshot(ctx context.Context, page Page, outcome *schemas.PublishOutcome, logger *zap.Logger) {
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	buf, err := page.Screenshot(shotCtx)
	if err != nil {
		logger.Debug("Failure screenshot unavailable.", zap.Error(err))
		return
	}
	outcome.Snapshot = buf
}

// conditionLabel maps a caller condition value onto the displayed option
// label.
func conditionLabel(condition string) string {
	if condition == "" {
		return ""
	}
	if label, ok := conditionLabels[strings.ToLower(strings.TrimSpace(condition))]; ok {
		return label
	}
	return condition
}

func extractListingID(url string) string {
	if m := listingIDPattern.FindStringSubmatch(url); len(m) == 2 {
		return m[1]
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/browser"
	"github.com/ternarybob/cookiescan/internal/browser/linkextract"
	"github.com/ternarybob/cookiescan/internal/browser/ratelimit"
	"github.com/ternarybob/cookiescan/internal/classifier"
	"github.com/ternarybob/cookiescan/internal/models"
	"github.com/ternarybob/cookiescan/internal/progress"
	"github.com/ternarybob/cookiescan/internal/scan/wait"
)

const navigationTimeout = 60 * time.Second

// Executor performs one scan end-to-end (spec §4.6): navigate, snapshot
// cookies before/after the accept click, hash storage, classify, and
// produce a ScanResult ready for persistence. Grounded on the teacher's
// crawler executor/worker (navigate-with-retry, exponential backoff) but
// replacing HTTP fetch+retry with chromedp navigation and generalizing
// single-page fetch into quick/deep/realtime scan modes.
type Executor struct {
	pool       *browser.Pool
	limiter    *ratelimit.Limiter
	classifier *classifier.Context
	bus        *progress.Bus
	logger     arbor.ILogger
}

func NewExecutor(pool *browser.Pool, limiter *ratelimit.Limiter, clsf *classifier.Context, bus *progress.Bus, logger arbor.ILogger) *Executor {
	return &Executor{pool: pool, limiter: limiter, classifier: clsf, bus: bus, logger: logger}
}

// pageObservation is what one page visit contributes before dedup.
type pageObservation struct {
	beforeAccept []cookieObservation
	afterAccept  []cookieObservation
	localStore   models.StorageSnapshot
	sessionStore models.StorageSnapshot
}

type cookieObservation struct {
	name, domain, path, value, sameSite string
	httpOnly, secure                   bool
	expires                            float64
}

// Run executes scanID's scan against domainConfigID/root using params,
// publishing progress to the bus as it goes, and returns the assembled
// ScanResult. The caller persists the result; Run never writes to storage
// itself.
func (e *Executor) Run(ctx context.Context, scanID, domainConfigID, root string, scanType models.ScanType, params models.ScanParams) (*models.ScanResult, error) {
	result := &models.ScanResult{
		ScanID:         scanID,
		DomainConfigID: domainConfigID,
		Domain:         root,
		ScanMode:       scanType,
		Status:         models.ScanStatusRunning,
		TimestampUTC:   time.Now().UTC(),
		Params:         params,
	}

	e.publish(scanID, models.ScanStatusRunning, "", 0, 0, "scan started")

	baseHost := baseDomainOf(root)
	targets, err := e.buildTargetList(ctx, root, params, scanType)
	if err != nil {
		result.Status = models.ScanStatusFailed
		result.Error = err.Error()
		return result, err
	}

	seen := make(map[string]models.Cookie)
	var visited []string

	for i := 0; i < len(targets); i++ {
		target := targets[i]
		pageURL := target.url
		if params.MaxPages > 0 && len(visited) >= params.MaxPages {
			break
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx, pageURL); err != nil {
				break
			}
		}

		obs, discoveredLinks, err := e.visitPage(ctx, pageURL, params)
		if err != nil {
			e.logger.Warn().Err(err).Str("url", pageURL).Msg("page visit failed after retries, skipping")
			continue
		}
		visited = append(visited, pageURL)

		if scanType == models.ScanTypeDeep && target.depth < params.ScanDepth {
			targets = appendNewInternalLinks(targets, discoveredLinks, baseHost, target.depth+1, params.MaxPages)
		}

		mergeObservation(seen, obs, baseHost)

		if obs.localStore != nil {
			result.LocalStorage = mergeStorage(result.LocalStorage, obs.localStore)
		}
		if obs.sessionStore != nil {
			result.SessionStorage = mergeStorage(result.SessionStorage, obs.sessionStore)
		}

		e.publish(scanID, models.ScanStatusRunning, pageURL, len(visited), len(seen), "page scanned")
	}

	cookies := make([]models.Cookie, 0, len(seen))
	for _, c := range seen {
		if e.classifier != nil {
			durationDays := cookieDurationDays(c.CookieDuration)
			c = e.classifier.Classify(ctx, domainConfigID, c, durationDays)
		}
		cookies = append(cookies, c)
	}

	result.PagesVisited = visited
	result.Cookies = cookies
	result.Status = models.ScanStatusSuccess
	result.Derive()

	e.publish(scanID, models.ScanStatusSuccess, "", len(visited), len(cookies), "scan complete")
	return result, nil
}

func (e *Executor) publish(scanID string, status models.ScanStatus, currentPage string, pagesVisited, cookiesFound int, message string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(progress.Snapshot{
		ScanID:       scanID,
		Status:       status,
		CurrentPage:  currentPage,
		PagesVisited: pagesVisited,
		CookiesFound: cookiesFound,
		Message:      message,
		Timestamp:    time.Now().UTC(),
	})
}

// crawlTarget pairs a page URL with the number of link-follow hops it took
// to reach it from root (root itself is depth 0), so deep-mode recursion
// can stop at params.ScanDepth instead of crawling unbounded.
type crawlTarget struct {
	url   string
	depth int
}

// buildTargetList resolves the initial page list per scan mode (spec
// §4.6): quick visits root + custom_pages once; deep starts with the same
// seed and grows via discovered internal links up to scan_depth hops;
// realtime behaves like quick.
func (e *Executor) buildTargetList(ctx context.Context, root string, params models.ScanParams, scanType models.ScanType) ([]crawlTarget, error) {
	targets := []crawlTarget{{url: root, depth: 0}}
	for _, page := range params.CustomPages {
		targets = append(targets, crawlTarget{url: page, depth: 0})
	}
	return targets, nil
}

func appendNewInternalLinks(targets []crawlTarget, discovered []string, baseHost string, nextDepth, maxPages int) []crawlTarget {
	existing := make(map[string]bool, len(targets))
	for _, t := range targets {
		existing[t.url] = true
	}
	for _, link := range discovered {
		if maxPages > 0 && len(targets) >= maxPages {
			break
		}
		if existing[link] {
			continue
		}
		existing[link] = true
		targets = append(targets, crawlTarget{url: link, depth: nextDepth})
	}
	return targets
}

// visitPage navigates to pageURL with retry/backoff, runs the configured
// wait strategy, snapshots cookies before and after the accept click,
// hashes storage, and (for deep mode) extracts internal links from the
// rendered HTML.
func (e *Executor) visitPage(ctx context.Context, pageURL string, params models.ScanParams) (pageObservation, []string, error) {
	lease, err := e.pool.Acquire(ctx, params.UserAgent, params.Viewport.Width, params.Viewport.Height)
	if err != nil {
		return pageObservation{}, nil, fmt.Errorf("acquire browser instance: %w", err)
	}
	defer lease.Release()

	pageCtx := lease.Context()

	if err := e.navigateWithRetry(pageCtx, pageURL, params.MaxRetries); err != nil {
		return pageObservation{}, nil, err
	}

	timeout := time.Duration(params.WaitForDynamicContent) * time.Second
	wait.For(params.WaitStrategy)(pageCtx, timeout)

	before := e.snapshotCookies(pageCtx)

	clickAccept(pageCtx, params.AcceptSelector)

	after := e.snapshotCookies(pageCtx)

	localStore := e.snapshotStorage(pageCtx, "localStorage")
	sessionStore := e.snapshotStorage(pageCtx, "sessionStorage")

	var html string
	_ = chromedp.Run(pageCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	var links []string
	if html != "" {
		if discovered, err := linkextract.InternalLinks(html, pageURL); err == nil {
			links = discovered
		}
	}

	return pageObservation{
		beforeAccept: before,
		afterAccept:  after,
		localStore:   localStore,
		sessionStore: sessionStore,
	}, links, nil
}

// navigateWithRetry retries navigation up to maxRetries times with backoff
// min(2^attempt, 60s), per spec §4.6 step 1.
func (e *Executor) navigateWithRetry(ctx context.Context, pageURL string, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		navCtx, cancel := context.WithTimeout(ctx, navigationTimeout)
		lastErr = chromedp.Run(navCtx, chromedp.Navigate(pageURL))
		cancel()
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		backoff := time.Duration(math.Min(math.Pow(2, float64(attempt)), 60)) * time.Second
		e.logger.Warn().Err(lastErr).Str("url", pageURL).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("navigation failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("navigate %s after %d retries: %w", pageURL, maxRetries, lastErr)
}

func (e *Executor) snapshotCookies(ctx context.Context) []cookieObservation {
	var netCookies []*network.Cookie
	if err := chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		cookies, err := network.GetAllCookies().Do(c)
		if err != nil {
			return err
		}
		netCookies = cookies
		return nil
	})); err != nil {
		e.logger.Debug().Err(err).Msg("failed to snapshot cookies")
		return nil
	}

	out := make([]cookieObservation, 0, len(netCookies))
	for _, c := range netCookies {
		out = append(out, cookieObservation{
			name:     c.Name,
			domain:   c.Domain,
			path:     c.Path,
			value:    c.Value,
			sameSite: string(c.SameSite),
			httpOnly: c.HTTPOnly,
			secure:   c.Secure,
			expires:  c.Expires,
		})
	}
	return out
}

// clickAccept locates the accept button by CSS selector and clicks it if
// visible. Any failure is swallowed (spec §4.6 step 4: banners vary).
func clickAccept(ctx context.Context, selector string) {
	if selector == "" {
		return
	}
	clickCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery))
}

// snapshotStorage evaluates window.<kind> in-page and hashes every value
// immediately; raw values never leave this function (spec §4.6 step 5).
func (e *Executor) snapshotStorage(ctx context.Context, kind string) models.StorageSnapshot {
	script := fmt.Sprintf(`(() => {
		const out = {};
		for (let i = 0; i < window.%s.length; i++) {
			const k = window.%s.key(i);
			out[k] = window.%s.getItem(k);
		}
		return out;
	})()`, kind, kind, kind)

	var raw map[string]string
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &raw)); err != nil {
		e.logger.Debug().Err(err).Str("storage_kind", kind).Msg("failed to snapshot storage")
		return nil
	}

	snap := make(models.StorageSnapshot, len(raw))
	for k, v := range raw {
		snap[k] = hashValue(v)
	}
	return snap
}

func hashValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

func mergeStorage(dst, src models.StorageSnapshot) models.StorageSnapshot {
	if dst == nil {
		dst = make(models.StorageSnapshot, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// mergeObservation folds one page's before/after cookie snapshots into the
// scan-wide dedup set, keyed by (name, domain, path); the first observation
// wins except set_after_accept is recomputed from whether this cookie
// appeared in a post-click snapshot (spec §4.6).
func mergeObservation(seen map[string]models.Cookie, obs pageObservation, baseHost string) {
	afterKeys := make(map[string]bool, len(obs.afterAccept))
	for _, c := range obs.afterAccept {
		afterKeys[dedupKeyOf(c)] = true
	}

	for _, c := range obs.beforeAccept {
		key := dedupKeyOf(c)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = toModelCookie(c, afterKeys[key], baseHost)
	}
	for _, c := range obs.afterAccept {
		key := dedupKeyOf(c)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = toModelCookie(c, true, baseHost)
	}
}

func dedupKeyOf(c cookieObservation) string {
	return c.name + "\x00" + c.domain + "\x00" + c.path
}

func toModelCookie(c cookieObservation, setAfterAccept bool, baseHost string) models.Cookie {
	cookieType := models.CookieTypeThirdParty
	normalizedDomain := strings.ToLower(strings.TrimPrefix(c.domain, "."))
	if baseHost != "" && strings.HasSuffix(normalizedDomain, baseHost) {
		cookieType = models.CookieTypeFirstParty
	}

	return models.Cookie{
		Name:           c.name,
		Domain:         c.domain,
		Path:           c.path,
		HashedValue:    hashValue(c.value),
		CookieDuration: formatCookieDuration(c.expires),
		Size:           len(c.name) + len(c.value),
		HTTPOnly:       c.httpOnly,
		Secure:         c.secure,
		SameSite:       c.sameSite,
		CookieType:     cookieType,
		SetAfterAccept: setAfterAccept,
	}
}

// baseDomainOf returns the last two DNS labels of rootURL's hostname, the
// two-label heuristic spec §4.6/§9 accepts for First/Third Party
// determination (public suffix list handling is explicitly out of scope).
func baseDomainOf(rootURL string) string {
	u, err := url.Parse(rootURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// formatCookieDuration renders expires (a Unix-seconds timestamp, or <= 0
// for a session cookie) the way the original cookie_categorization.py's
// cookie_duration_days does: "Session", "Expired", "<n> minutes", or
// "<n.n> days" (spec.md §3).
func formatCookieDuration(expires float64) string {
	if expires <= 0 {
		return "Session"
	}
	delta := time.Until(time.Unix(int64(expires), 0))
	switch {
	case delta <= 0:
		return "Expired"
	case delta < 24*time.Hour:
		return fmt.Sprintf("%.0f minutes", delta.Minutes())
	default:
		return fmt.Sprintf("%.1f days", delta.Hours()/24)
	}
}

// cookieDurationDays recovers an approximate day count from a formatted
// CookieDuration string for the classifier cascade's numeric threshold
// checks (spec §4.8).
func cookieDurationDays(duration string) float64 {
	switch {
	case duration == "" || duration == "Session" || duration == "Expired":
		return 0
	case strings.HasSuffix(duration, " minutes"):
		minutes, err := strconv.ParseFloat(strings.TrimSuffix(duration, " minutes"), 64)
		if err != nil {
			return 0
		}
		return minutes / 60 / 24
	case strings.HasSuffix(duration, " days"):
		days, err := strconv.ParseFloat(strings.TrimSuffix(duration, " days"), 64)
		if err != nil {
			return 0
		}
		return days
	default:
		return 0
	}
}

package browser

import (
	"context"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthScript hides the most common headless-automation tells: the
// webdriver flag, an empty navigator.plugins/languages, and a missing
// window.chrome global.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
`

// stealthPatch installs the stealth script to run on every new document in
// the leased context, before any page script executes.
func stealthPatch() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
		return err
	})
}

// applyUserAgentAndViewport sets the caller's user agent (spec §4.10) and
// emulates the requested viewport. Width/height of zero leave chromedp's
// default viewport untouched.
func applyUserAgentAndViewport(ctx context.Context, userAgent string, width, height int) error {
	actions := make([]chromedp.Action, 0, 2)
	if userAgent != "" {
		actions = append(actions, network.SetUserAgentOverride(userAgent))
	}
	if width > 0 && height > 0 {
		actions = append(actions, emulation.SetDeviceMetricsOverride(int64(width), int64(height), 1, false))
	}
	if len(actions) == 0 {
		return nil
	}
	return chromedp.Run(ctx, actions...)
}

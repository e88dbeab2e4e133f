// Package wait implements the Wait Strategies (spec §4.7): a single
// contract, Strategy(ctx, timeout) bool, with five named strategies.
// Grounded on the teacher's crawler executor's use of chromedp.Run with
// timeout contexts; generalized into named, swappable strategies since the
// teacher only ever waited a fixed duration.
package wait

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/cookiescan/internal/models"
)

// Strategy waits for a page-readiness condition in the given browser
// context, capped at timeout. The returned bool is informational only: a
// timed-out wait never aborts the scan (spec §4.7).
type Strategy func(ctx context.Context, timeout time.Duration) bool

// For resolves the named wait strategy, defaulting to "timeout" for unknown
// values.
func For(name models.WaitStrategy) Strategy {
	switch name {
	case models.WaitDOMContentLoaded:
		return domContentLoaded
	case models.WaitNetworkIdle:
		return networkIdle
	case models.WaitLoad:
		return load
	case models.WaitCombined:
		return combined
	default:
		return sleepOnly
	}
}

func sleepOnly(ctx context.Context, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func domContentLoaded(ctx context.Context, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := chromedp.Run(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	return err == nil
}

func load(ctx context.Context, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := chromedp.Run(waitCtx, chromedp.WaitVisible("body", chromedp.ByQuery))
	return err == nil
}

// networkIdle waits until no more than 0 requests are in flight for at
// least 500ms, via the network domain's request lifecycle events, capped at
// timeout.
func networkIdle(ctx context.Context, timeout time.Duration) bool {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	inFlight := 0
	idleSince := time.Now()
	const idleWindow = 500 * time.Millisecond

	listenCtx, stopListen := context.WithCancel(waitCtx)
	defer stopListen()

	chromedp.ListenTarget(listenCtx, func(ev interface{}) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			inFlight++
			idleSince = time.Now()
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if inFlight > 0 {
				inFlight--
			}
			if inFlight == 0 {
				idleSince = time.Now()
			}
		}
	})

	if err := chromedp.Run(waitCtx, network.Enable()); err != nil {
		return false
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-waitCtx.Done():
			return false
		case <-ticker.C:
			if inFlight == 0 && time.Since(idleSince) >= idleWindow {
				return true
			}
		}
	}
}

// combined waits for DOMContentLoaded on half the budget, then network idle
// on the remaining half; on timeout falls back to a short fixed sleep.
func combined(ctx context.Context, timeout time.Duration) bool {
	half := timeout / 2
	if domContentLoaded(ctx, half) {
		if networkIdle(ctx, timeout-half) {
			return true
		}
	}
	sleepOnly(ctx, 2*time.Second)
	return false
}

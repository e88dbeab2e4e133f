// Package browser implements the Browser Pool (spec §4.10): amortising
// expensive chromedp startup across scans. Grounded on the teacher's
// crawler.ChromeDPPool (allocator + browser context pair per instance,
// startup smoke-test), generalized from round-robin allocation to
// acquire/release with recycling thresholds and a background health
// checker, since the teacher never recycled or health-checked instances.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Config configures the pool. Size is clamped to [1, 10]; default 5.
type Config struct {
	Size               int
	WarmSize           int // instances started eagerly at Init; default min(2, Size)
	Headless           bool
	DisableGPU         bool
	NoSandbox          bool
	AcquireFastPath    time.Duration // default 1s
	MaxAge             time.Duration // default 3600s
	MaxIdle            time.Duration // default 300s
	MaxUseCount        int           // default 100
	HealthCheckPeriod  time.Duration // default 60s
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = 5
	}
	if c.Size > 10 {
		c.Size = 10
	}
	if c.WarmSize <= 0 {
		c.WarmSize = 2
	}
	if c.WarmSize > 2 {
		c.WarmSize = 2
	}
	if c.WarmSize > c.Size {
		c.WarmSize = c.Size
	}
	if c.AcquireFastPath <= 0 {
		c.AcquireFastPath = time.Second
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 3600 * time.Second
	}
	if c.MaxIdle <= 0 {
		c.MaxIdle = 300 * time.Second
	}
	if c.MaxUseCount <= 0 {
		c.MaxUseCount = 100
	}
	if c.HealthCheckPeriod <= 0 {
		c.HealthCheckPeriod = 60 * time.Second
	}
	return c
}

// Instance wraps one allocator+browser context pair with recycling state.
type Instance struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserCancel context.CancelFunc

	createdAt  time.Time
	lastUsedAt time.Time
	useCount   int
}

func (inst *Instance) expired(cfg Config) bool {
	now := time.Now()
	if now.Sub(inst.createdAt) > cfg.MaxAge {
		return true
	}
	if now.Sub(inst.lastUsedAt) > cfg.MaxIdle {
		return true
	}
	if inst.useCount >= cfg.MaxUseCount {
		return true
	}
	return false
}

func (inst *Instance) close() {
	inst.browserCancel()
	inst.allocCancel()
}

// Lease is handed to a caller on Acquire; Release recycles or returns the
// underlying instance to the pool depending on its age/idle/use-count.
type Lease struct {
	pool   *Pool
	inst   *Instance
	ctx    context.Context
	cancel context.CancelFunc
}

// Context is the isolated per-acquisition browser context the caller should
// run chromedp actions against.
func (l *Lease) Context() context.Context { return l.ctx }

// Release closes the caller's isolated context and returns the underlying
// instance to the pool, recycling it first if it has crossed a threshold.
func (l *Lease) Release() {
	l.cancel()
	l.pool.release(l.inst)
}

// Pool manages chromedp instances with acquire/release semantics, recycling
// thresholds, and a background health checker (spec §4.10).
type Pool struct {
	cfg    Config
	logger arbor.ILogger

	mu        sync.Mutex
	idle      []*Instance
	total     int
	waiters   chan struct{}
	closed    bool
	stopHealth chan struct{}
}

func NewPool(cfg Config, logger arbor.ILogger) *Pool {
	return &Pool{
		cfg:        cfg.withDefaults(),
		logger:     logger,
		waiters:    make(chan struct{}, 64),
		stopHealth: make(chan struct{}),
	}
}

// Init performs the lazy warm-up: starts cfg.WarmSize instances.
func (p *Pool) Init() error {
	for i := 0; i < p.cfg.WarmSize; i++ {
		inst, err := p.newInstance()
		if err != nil {
			if i == 0 {
				return fmt.Errorf("browser pool warm-up failed: %w", err)
			}
			p.logger.Warn().Err(err).Int("index", i).Msg("warm-up instance failed, continuing with fewer")
			break
		}
		p.mu.Lock()
		p.idle = append(p.idle, inst)
		p.mu.Unlock()
	}
	go p.healthLoop()
	return nil
}

func (p *Pool) newInstance() (*Instance, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("disable-gpu", p.cfg.DisableGPU),
		chromedp.Flag("no-sandbox", p.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("browser instance failed startup test: %w", err)
	}

	now := time.Now()
	p.mu.Lock()
	p.total++
	p.mu.Unlock()

	return &Instance{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		createdAt:     now,
		lastUsedAt:    now,
	}, nil
}

// Acquire returns a Lease with an isolated browser context, applying stealth
// patches and the caller's user agent/viewport. Fast path: pop an idle
// instance within AcquireFastPath; on miss, create a new one if under the
// cap, else block until a release.
func (p *Pool) Acquire(ctx context.Context, userAgent string, width, height int) (*Lease, error) {
	deadline := time.Now().Add(p.cfg.AcquireFastPath)
	for {
		inst := p.popIdle()
		if inst != nil {
			return p.lease(ctx, inst, userAgent, width, height)
		}

		p.mu.Lock()
		canCreate := p.total < p.cfg.Size
		p.mu.Unlock()
		if canCreate {
			newInst, err := p.newInstance()
			if err != nil {
				return nil, err
			}
			return p.lease(ctx, newInst, userAgent, width, height)
		}

		if time.Now().After(deadline) {
			select {
			case <-p.waiters:
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func (p *Pool) popIdle() *Instance {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.idle) > 0 {
		inst := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if inst.expired(p.cfg) {
			inst.close()
			p.total--
			continue
		}
		return inst
	}
	return nil
}

func (p *Pool) lease(ctx context.Context, inst *Instance, userAgent string, width, height int) (*Lease, error) {
	leaseCtx, cancel := chromedp.NewContext(inst.browserCtx)
	if err := chromedp.Run(leaseCtx, stealthPatch()); err != nil {
		p.logger.Warn().Err(err).Msg("failed to apply stealth patch, continuing anyway")
	}
	if err := applyUserAgentAndViewport(leaseCtx, userAgent, width, height); err != nil {
		p.logger.Warn().Err(err).Msg("failed to apply user agent/viewport override, continuing anyway")
	}

	inst.lastUsedAt = time.Now()
	inst.useCount++

	return &Lease{pool: p, inst: inst, ctx: leaseCtx, cancel: cancel}, nil
}

func (p *Pool) release(inst *Instance) {
	if inst.expired(p.cfg) {
		inst.close()
		p.mu.Lock()
		p.total--
		p.mu.Unlock()
		p.logger.Debug().Msg("recycled browser instance past a threshold")
	} else {
		p.mu.Lock()
		p.idle = append(p.idle, inst)
		p.mu.Unlock()
	}
	select {
	case p.waiters <- struct{}{}:
	default:
	}
}

// healthLoop probes idle instances with a trivial navigation; unhealthy ones
// are dropped from the idle set so the next Acquire replaces them.
func (p *Pool) healthLoop() {
	ticker := time.NewTicker(p.cfg.HealthCheckPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopHealth:
			return
		case <-ticker.C:
			p.checkIdleHealth()
		}
	}
}

func (p *Pool) checkIdleHealth() {
	p.mu.Lock()
	candidates := make([]*Instance, len(p.idle))
	copy(candidates, p.idle)
	p.mu.Unlock()

	for _, inst := range candidates {
		ctx, cancel := context.WithTimeout(inst.browserCtx, 5*time.Second)
		err := chromedp.Run(ctx, chromedp.Navigate("about:blank"))
		cancel()
		if err != nil {
			p.logger.Warn().Err(err).Msg("idle instance failed health probe, marking for recycling")
			p.mu.Lock()
			for i, idle := range p.idle {
				if idle == inst {
					p.idle = append(p.idle[:i], p.idle[i+1:]...)
					break
				}
			}
			p.mu.Unlock()
			inst.close()
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
		}
	}
}

// Shutdown closes the idle instances and marks the pool closed. Instances
// that are checked out at the time of the call are not closed by Shutdown.
func (p *Pool) Shutdown() {
	close(p.stopHealth)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, inst := range p.idle {
		inst.close()
	}
	p.idle = nil
	p.total = 0
	p.closed = true
}

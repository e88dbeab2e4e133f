package models

import "time"

// WaitStrategy names one of the page-ready heuristics in §4.7.
type WaitStrategy string

const (
	WaitTimeout          WaitStrategy = "timeout"
	WaitNetworkIdle      WaitStrategy = "networkidle"
	WaitDOMContentLoaded WaitStrategy = "domcontentloaded"
	WaitLoad             WaitStrategy = "load"
	WaitCombined         WaitStrategy = "combined"
)

// Viewport is the emulated browser window size for a scan.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScanParams configures one scan run, whether derived from a Schedule or
// supplied directly for an operator-triggered one-shot scan.
type ScanParams struct {
	MaxPages              int          `json:"max_pages,omitempty" validate:"omitempty,gt=0"`
	ScanDepth             int          `json:"scan_depth" validate:"gte=0,lte=10"`
	MaxRetries            int          `json:"max_retries" validate:"gte=0,lte=5"`
	CustomPages           []string     `json:"custom_pages,omitempty" validate:"omitempty,max=50"`
	AcceptSelector        string       `json:"accept_selector,omitempty"`
	WaitForDynamicContent int          `json:"wait_for_dynamic_content" validate:"gte=5,lte=60"`
	WaitStrategy          WaitStrategy `json:"wait_strategy"`
	Viewport              Viewport     `json:"viewport"`
	UserAgent             string       `json:"user_agent,omitempty"`
}

// ScanStatus is the lifecycle state of a ScanResult.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusSuccess   ScanStatus = "success"
	ScanStatusFailed    ScanStatus = "failed"
	ScanStatusCancelled ScanStatus = "cancelled"
)

// IsTerminal reports whether status can no longer transition.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanStatusSuccess || s == ScanStatusFailed || s == ScanStatusCancelled
}

// StorageSnapshot maps storage keys to SHA-256 hex digests of their values.
// Raw values never reach this type.
type StorageSnapshot map[string]string

// ScanResult is the persisted outcome of one scan.
type ScanResult struct {
	ScanID          string          `json:"scan_id" badgerhold:"key"`
	DomainConfigID  string          `json:"domain_config_id" badgerhold:"index"`
	Domain          string          `json:"domain"`
	ScanMode        ScanType        `json:"scan_mode"`
	Status          ScanStatus      `json:"status" badgerhold:"index"`
	TimestampUTC    time.Time       `json:"timestamp_utc"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
	PagesVisited    []string        `json:"pages_visited"`
	Cookies         []Cookie        `json:"cookies"`
	LocalStorage    StorageSnapshot `json:"local_storage,omitempty"`
	SessionStorage  StorageSnapshot `json:"session_storage,omitempty"`
	TotalCookies    int             `json:"total_cookies"`
	PageCount       int             `json:"page_count"`
	Error           string          `json:"error,omitempty"`
	Params          ScanParams      `json:"params"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Derive recomputes TotalCookies/PageCount from the slices they mirror,
// keeping the invariant r.total_cookies = |r.cookies| true by construction.
func (r *ScanResult) Derive() {
	r.TotalCookies = len(r.Cookies)
	r.PageCount = len(r.PagesVisited)
}

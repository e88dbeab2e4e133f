// Package externalsync pulls schedule records from the optional external
// schedule source (spec §6) and translates them into models.Schedule for
// schedule.Repository.SyncFromExternal.
package externalsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/ternarybob/cookiescan/internal/models"
)

// record is the wire shape documented in spec §6: {domain_config_id,
// data:{domain, schedule:{frequency, time:{...}}, maxPages?, scanDepth?,
// maxRetries?, customPages?, allow_deep_scan}}.
type record struct {
	DomainConfigID string `json:"domain_config_id"`
	Data           struct {
		Domain   string `json:"domain"`
		Schedule struct {
			Frequency string `json:"frequency"`
			Time      struct {
				Hour      int    `json:"hour"`
				Minute    int    `json:"minute"`
				Day       int    `json:"day"`
				DayOfWeek string `json:"day_of_week"`
				CronExpr  string `json:"cron_expr"`
			} `json:"time"`
		} `json:"schedule"`
		MaxPages       int      `json:"maxPages"`
		ScanDepth      int      `json:"scanDepth"`
		MaxRetries     int      `json:"maxRetries"`
		CustomPages    []string `json:"customPages"`
		AllowDeepScan  bool     `json:"allow_deep_scan"`
	} `json:"data"`
}

// Client pulls the external schedule source over HTTP, optionally
// authenticated with an OAuth2 client-credentials flow.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config configures the external schedule source endpoint and, if TokenURL
// is non-empty, an OAuth2 client-credentials client to authenticate pulls.
type Config struct {
	URL          string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
}

func NewClient(cfg Config) *Client {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.TokenURL != "" {
		oauthCfg := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = oauthCfg.Client(context.Background())
		httpClient.Timeout = cfg.Timeout
	}
	return &Client{baseURL: cfg.URL, httpClient: httpClient}
}

// Pull fetches and translates external records into schedules ready for
// Repository.SyncFromExternal. Records with allow_deep_scan=false are
// dropped here, per spec §6.
func (c *Client) Pull(ctx context.Context) ([]*models.Schedule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build external schedule request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull external schedules: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("external schedule source returned %d", resp.StatusCode)
	}

	var records []record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode external schedules: %w", err)
	}

	schedules := make([]*models.Schedule, 0, len(records))
	for _, rec := range records {
		if !rec.Data.AllowDeepScan {
			continue
		}
		scanType := models.ScanTypeQuick
		if rec.Data.ScanDepth > 0 {
			scanType = models.ScanTypeDeep
		}
		schedules = append(schedules, &models.Schedule{
			DomainConfigID: rec.DomainConfigID,
			Domain:         rec.Data.Domain,
			ScanType:       scanType,
			Frequency:      models.Frequency(rec.Data.Schedule.Frequency),
			TimeConfig: models.TimeConfig{
				Hour:      rec.Data.Schedule.Time.Hour,
				Minute:    rec.Data.Schedule.Time.Minute,
				Day:       rec.Data.Schedule.Time.Day,
				DayOfWeek: rec.Data.Schedule.Time.DayOfWeek,
				CronExpr:  rec.Data.Schedule.Time.CronExpr,
			},
			ScanParams: models.ScanParams{
				MaxPages:    rec.Data.MaxPages,
				ScanDepth:   rec.Data.ScanDepth,
				MaxRetries:  rec.Data.MaxRetries,
				CustomPages: rec.Data.CustomPages,
			},
			Enabled: true,
		})
	}
	return schedules, nil
}

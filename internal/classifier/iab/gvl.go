// Package iab loads the IAB Global Vendor List and implements the
// purpose-id to CMP-category translation used by cascade step 3 (spec
// §4.8). Grounded on the teacher's services/llm provider pattern for
// "fetch once at startup, fall back to a cached copy, skip silently on
// double failure" (provider.go's API-key resolution follows the same
// shape), generalized to an HTTP document fetch instead of an API call.
package iab

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/models"
)

// Vendor is one GVL vendor entry, trimmed to what the cascade needs.
type Vendor struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Purposes []int  `json:"purposes"`
}

type gvlDocument struct {
	Vendors map[string]Vendor `json:"vendors"`
}

// purposeCategory is the fixed purpose-id -> CMP-category table (spec §4.8
// step 3): {1,2 -> Necessary; 3,8,9 -> Functional; 6,7,10 -> Analytics;
// 4,5 -> Advertising}.
var purposeCategory = map[int]models.Category{
	1:  models.CategoryNecessary,
	2:  models.CategoryNecessary,
	3:  models.CategoryFunctional,
	8:  models.CategoryFunctional,
	9:  models.CategoryFunctional,
	6:  models.CategoryAnalytics,
	7:  models.CategoryAnalytics,
	10: models.CategoryAnalytics,
	4:  models.CategoryAdvertising,
	5:  models.CategoryAdvertising,
}

// GVL holds the loaded vendor list, keyed by vendor id. A zero-value GVL
// (no vendors loaded) makes CategoryForVendor always report "not found", which the
// cascade treats as "silently skip step 3" (spec §4.8).
type GVL struct {
	mu      sync.RWMutex
	vendors map[int]Vendor
	logger  arbor.ILogger
}

// Load fetches the GVL document from url; on failure it falls back to
// cachePath on disk; if both fail, returns a usable-but-empty GVL rather
// than an error, since step 3 of the cascade is allowed to be silently
// skipped entirely (spec §4.8).
func Load(url, cachePath string, logger arbor.ILogger) *GVL {
	g := &GVL{vendors: make(map[int]Vendor), logger: logger}

	body, err := fetch(url)
	if err != nil {
		logger.Warn().Err(err).Str("url", url).Msg("failed to fetch IAB GVL, trying cached copy")
		body, err = os.ReadFile(cachePath)
		if err != nil {
			logger.Warn().Err(err).Str("cache_path", cachePath).Msg("no cached IAB GVL available, vendor lookups will be skipped")
			return g
		}
	} else if cachePath != "" {
		_ = os.WriteFile(cachePath, body, 0o644)
	}

	var doc gvlDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		logger.Warn().Err(err).Msg("failed to parse IAB GVL document, vendor lookups will be skipped")
		return g
	}

	for key, v := range doc.Vendors {
		if v.ID == 0 {
			if id, err := strconv.Atoi(key); err == nil {
				v.ID = id
			}
		}
		g.vendors[v.ID] = v
	}
	logger.Info().Int("vendor_count", len(g.vendors)).Msg("loaded IAB GVL")
	return g
}

func fetch(url string) ([]byte, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GVL endpoint returned %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// CategoryForVendor translates vendorID's declared purposes into a single
// CMP category by priority order (spec §4.8 step 3), returning ok=false if
// the vendor is unknown or declares no mapped purpose.
func (g *GVL) CategoryForVendor(vendorID int) (category models.Category, name string, ok bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	vendor, found := g.vendors[vendorID]
	if !found {
		return "", "", false
	}

	best := models.Category("")
	for _, purposeID := range vendor.Purposes {
		cat, mapped := purposeCategory[purposeID]
		if !mapped {
			continue
		}
		if best == "" || models.HigherPriority(cat, best) {
			best = cat
		}
	}
	if best == "" {
		return "", vendor.Name, false
	}
	return best, vendor.Name, true
}

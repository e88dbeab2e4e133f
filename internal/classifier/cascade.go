// Package classifier implements the Classifier Cascade (spec §4.8): a
// priority-ordered pipeline assigning (category, vendor, source, …) to
// each cookie. Grounded on the teacher's llm.ProviderFactory call sites
// (ML prediction is just another provider call). Classify runs the steps
// in priority order and returns at the first step that decides; ML
// evidence can decorate an IAB or regex decision without overriding it.
package classifier

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/cookiescan/internal/classifier/iab"
	"github.com/ternarybob/cookiescan/internal/classifier/llm"
	"github.com/ternarybob/cookiescan/internal/classifier/override"
	"github.com/ternarybob/cookiescan/internal/classifier/rules"
	"github.com/ternarybob/cookiescan/internal/models"
)

// defaultMLHighConfidence and defaultMLAgreeThreshold apply when Context
// is built without explicit thresholds (e.g. in tests).
const (
	defaultMLHighConfidence = 0.75
	defaultMLAgreeThreshold = 0.50
)

// Context bundles the caches and static data the cascade reads, built once
// at startup and threaded through every scan (spec §9's "Global mutable
// caches" note: an explicit ClassifierContext rather than ambient globals).
type Context struct {
	Overrides *override.Cache
	Predictor llm.Predictor // nil if no ML classifier is configured
	GVL       *iab.GVL
	Rules     *rules.Set
	Logger    arbor.ILogger

	// MLHighConfidence and MLAgreeThreshold override the cascade's ML
	// confidence cutoffs (spec §4.8 steps 2 and 3/4). Zero means "use
	// the default".
	MLHighConfidence float64
	MLAgreeThreshold float64
}

func (c *Context) mlHighConfidence() float64 {
	if c.MLHighConfidence > 0 {
		return c.MLHighConfidence
	}
	return defaultMLHighConfidence
}

func (c *Context) mlAgreeThreshold() float64 {
	if c.MLAgreeThreshold > 0 {
		return c.MLAgreeThreshold
	}
	return defaultMLAgreeThreshold
}

// Classify runs the full cascade for one cookie within domainConfigID,
// returning the annotated cookie. durationDays approximates the cookie's
// lifetime for the ML prompt; pass 0 for session cookies.
func (c *Context) Classify(ctx context.Context, domainConfigID string, cookie models.Cookie, durationDays float64) models.Cookie {
	var mlPred *llm.Prediction
	if c.Predictor != nil {
		pred, err := c.Predictor.Predict(ctx, cookie.Name, cookie.Domain, durationDays)
		if err != nil {
			c.Logger.Debug().Err(err).Str("cookie", cookie.Name).Msg("ML classification call failed, continuing without it")
		} else {
			mlPred = pred
		}
	}

	var evidence []string
	mlDisagreedLowConfidence := false

	// Step 1: DB override.
	if c.Overrides != nil {
		if tmpl, found := c.Overrides.Lookup(domainConfigID, cookie.Name); found {
			cookie.Category = tmpl.Category
			cookie.Vendor = tmpl.Vendor
			cookie.Description = tmpl.Description
			cookie.Source = models.SourceDB
			cookie.RequiresReview = false
			return cookie
		}
	}

	// Step 2: ML high-confidence.
	if mlPred != nil && mlPred.Confidence >= c.mlHighConfidence() {
		cookie.Category = models.Category(mlPred.Category)
		cookie.Source = models.SourceMLHigh
		cookie.MLConfidence = &mlPred.Confidence
		cookie.MLProbabilities = mlPred.Probabilities
		cookie.RequiresReview = false
		return cookie
	}

	// Step 3: IAB vendor map, via regex rules carrying an iab_id.
	if c.GVL != nil && c.Rules != nil {
		for _, rule := range c.Rules.MatchesWithIABID(cookie.Name) {
			category, vendorName, ok := c.GVL.CategoryForVendor(rule.IABID)
			if !ok {
				continue
			}
			cookie.Category = category
			cookie.Vendor = vendorName
			cookie.IABPurposes = rule.IABPurposes
			cookie.Source = models.SourceIAB
			cookie.RequiresReview = false

			if mlPred != nil && mlPred.Confidence >= c.mlAgreeThreshold() && models.Category(mlPred.Category) == category {
				cookie.Source = models.SourceIABMLBlend
			} else if mlPred != nil && mlPred.Confidence < c.mlAgreeThreshold() && models.Category(mlPred.Category) != category {
				mlDisagreedLowConfidence = true
			}
			cookie.RequiresReview = mlDisagreedLowConfidence
			return cookie
		}
	}

	// Step 4: first matching regex rule.
	if c.Rules != nil {
		if rule, found := c.Rules.Match(cookie.Name); found {
			cookie.Category = rule.Category
			cookie.Vendor = rule.Vendor
			cookie.Description = rule.Description
			cookie.IABPurposes = rule.IABPurposes
			cookie.Source = models.SourceRulesJSON
			cookie.RequiresReview = false

			if mlPred != nil && mlPred.Confidence >= c.mlAgreeThreshold() && models.Category(mlPred.Category) == rule.Category {
				cookie.Source = models.SourceRulesMLAgree
				evidence = append(evidence, mlEvidence(mlPred))
				cookie.ClassificationEvidence = evidence
			} else if mlPred != nil && mlPred.Confidence < c.mlAgreeThreshold() && models.Category(mlPred.Category) != rule.Category {
				mlDisagreedLowConfidence = true
			}
			cookie.RequiresReview = mlDisagreedLowConfidence
			return cookie
		}
	}

	// Step 5: ML low-confidence.
	if mlPred != nil {
		cookie.Category = models.Category(mlPred.Category)
		cookie.Source = models.SourceMLLow
		cookie.MLConfidence = &mlPred.Confidence
		cookie.MLProbabilities = mlPred.Probabilities
		cookie.RequiresReview = true
		return cookie
	}

	// Step 6: fallback.
	cookie.Category = models.CategoryUnknown
	cookie.Vendor = "Unknown"
	cookie.Source = models.SourceFallback
	cookie.RequiresReview = true
	return cookie
}

func mlEvidence(pred *llm.Prediction) string {
	return "ml_agreed:" + strings.ToLower(pred.Category)
}

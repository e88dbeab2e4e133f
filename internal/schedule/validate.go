package schedule

import (
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/cookiescan/internal/models"
)

var validate = validator.New()

// ValidateScanParams enforces the bounds spec §3/§8 require: wait_for_dynamic_content
// in [5,60], scan_depth in [0,10], max_retries in [0,5], custom_pages <= 50.
func ValidateScanParams(params models.ScanParams) error {
	return validate.Struct(params)
}

package tracker

import (
	"fmt"
	"strings"

	"github.com/david/jd-copilot/internal/models"
)

var DQCodes = []string{
	"COMP_BELOW_THRESHOLD",
	"LOCATION_MISMATCH",
	"DOMAIN_NOT_INTERESTED",
	"SENIORITY_MISMATCH",
	"SCOPE_MISMATCH",
	"TECH_STACK_MISMATCH",
	"CULTURE_RED_FLAG",
	"BUSINESS_FUNDAMENTALS_CONCERN",
	"TIMING_CONSTRAINT",
}

func IsDQCode(code string) bool {
	for _, known := range DQCodes {
		if code == known {
			return true
		}
	}
	return false
}

// BuildDQReasons attaches the shared note to every selected code, keeping
// the selection order and dropping duplicates.
func BuildDQReasons(codes []string, note string) ([]models.DQReason, error) {
	note = strings.TrimSpace(note)
	reasons := make([]models.DQReason, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, raw := range codes {
		code := strings.ToUpper(strings.TrimSpace(raw))
		if !IsDQCode(code) {
			return nil, fmt.Errorf("%w: unknown DQ code %q", models.ErrInvalidInput, raw)
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		reasons = append(reasons, models.DQReason{Code: code, Note: note})
	}
	return reasons, nil
}

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/david/jd-copilot/internal/models"
)

type DQSuggestion struct {
	Codes     []string `json:"codes"`
	Rationale string   `json:"rationale"`
}

const dqSystem = `You review job analyses and flag disqualifying reasons. Respond ONLY with JSON.`

// SuggestDQCodes asks the model which disqualification codes apply to an
// analysed opportunity. Codes outside allowed are dropped.
func SuggestDQCodes(ctx context.Context, client Completer, analysis *models.JDAnalysis, rubric string, allowed []string) (*DQSuggestion, error) {
	if client == nil {
		return nil, ErrMissingCredential
	}
	if analysis == nil {
		return nil, fmt.Errorf("%w: opportunity has no analysis", models.ErrInvalidInput)
	}

	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}

	prompt := fmt.Sprintf(`Given the candidate's rubric and the analysis of a job description below, decide which disqualification codes clearly apply.

USER RUBRIC:
%s

ANALYSIS:
%s

Select codes only from this EXACT list. Do not invent new codes.
AVAILABLE CODES: %s

Return a JSON object with this format:
{
  "codes": ["CODE_1", "CODE_2"],
  "rationale": "one or two sentences"
}

Rules:
1. Select only codes supported by evidence in the analysis (top_risks, gaps, low scores).
2. If nothing disqualifies the role, return an empty codes array.`, rubric, analysisJSON, strings.Join(allowed, ", "))

	resp, err := client.Complete(ctx, dqSystem, prompt)
	if err != nil {
		return nil, err
	}

	var result DQSuggestion
	if err := json.Unmarshal([]byte(cleanModelJSON(resp.Text)), &result); err != nil {
		return nil, fmt.Errorf("%w: dq suggestion: %v", ErrInvalidSchema, err)
	}

	result.Codes = filterValid(result.Codes, allowed)
	return &result, nil
}

func filterValid(tags []string, allowed []string) []string {
	valid := make([]string, 0)
	seen := make(map[string]bool)

	for _, t := range tags {
		for _, a := range allowed {
			if strings.EqualFold(a, strings.TrimSpace(t)) && !seen[a] {
				valid = append(valid, a) // Store the canonical one
				seen[a] = true
				break
			}
		}
	}
	return valid
}

package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/hale-labs/hale-oracle/internal/verdict"
)

var ErrMalformedResponse = errors.New("malformed judge response")

type wireVerdict struct {
	Verdict      string      `json:"verdict"`
	Confidence   json.Number `json:"confidence_score"`
	Reasoning    string      `json:"reasoning"`
	ReleaseFunds bool        `json:"release_funds"`
	RiskFlags    []string    `json:"risk_flags"`
}

// StripFences removes surrounding markdown code fences and any prose around the object
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end <= start {
		return strings.TrimSpace(strings.Trim(strings.TrimPrefix(text, "```json"), "`"))
	}
	return text[start : end+1]
}

// ParseVerdict converts raw judge output to a normalized verdict. Unknown fields are
// dropped; a missing or unknown outcome is an error
func ParseVerdict(raw string) (*verdict.Verdict, error) {
	var w wireVerdict
	dec := json.NewDecoder(strings.NewReader(StripFences(raw)))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}

	confidence := 0
	if w.Confidence != "" {
		f, err := w.Confidence.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: confidence_score %q", ErrMalformedResponse, w.Confidence)
		}
		confidence = int(math.Round(f))
	}

	v := &verdict.Verdict{
		Outcome:      verdict.Outcome(w.Verdict),
		Confidence:   confidence,
		Reasoning:    w.Reasoning,
		ReleaseFunds: w.ReleaseFunds,
		RiskFlags:    w.RiskFlags,
	}
	v.Normalize()

	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	return v, nil
}

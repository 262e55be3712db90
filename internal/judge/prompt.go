package judge

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/hale-labs/hale-oracle/internal/verdict"
)

const DefaultSystemPrompt = `You are HALE Oracle, a forensic auditor for escrowed digital deliveries.

You receive a JSON document with a transaction id, the contract terms, a list of
acceptance criteria and the delivered content. Decide whether the delivery satisfies
every acceptance criterion and is free of malicious or destructive behaviour.

Respond with a single JSON object and nothing else:
{
  "transaction_id": "<echo the input>",
  "verdict": "PASS" | "FAIL",
  "confidence_score": <integer 0-100>,
  "release_funds": <true only when verdict is PASS>,
  "reasoning": "<short forensic explanation>",
  "risk_flags": ["<zero or more short risk labels>"]
}`

type promptInput struct {
	TransactionID      string   `json:"transaction_id"`
	ContractTerms      string   `json:"Contract_Terms"`
	AcceptanceCriteria []string `json:"Acceptance_Criteria"`
	DeliveryContent    string   `json:"Delivery_Content"`
}

// FormatRequest renders the user prompt for a claim. Delivery content is JSON escaped
func FormatRequest(claim *verdict.Claim) string {
	criteria := claim.AcceptanceCriteria
	if criteria == nil {
		criteria = []string{}
	}
	body, err := json.MarshalIndent(promptInput{
		TransactionID:      claim.TransactionID,
		ContractTerms:      claim.Terms,
		AcceptanceCriteria: criteria,
		DeliveryContent:    claim.DeliveryContent,
	}, "", "  ")
	if err != nil {
		// strings and string slices always marshal
		panic(err)
	}
	return "Input:\n" + string(body)
}

// LoadSystemPrompt reads the system prompt from path, empty path or blank file yields the default
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return DefaultSystemPrompt, nil
	}
	return prompt, nil
}

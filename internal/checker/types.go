package checker

import (
	"encoding/json"
	"fmt"

	"github.com/cruxstack/email-reachability-go/internal/policy"
	"github.com/cruxstack/email-reachability-go/internal/types"
)

// Request is the batch request body.
type Request struct {
	Emails []string `json:"emails"`
}

// Item is one verified address as returned to callers.
type Item struct {
	types.VerificationResult
	Policy *policy.Decision `json:"policy,omitempty"`
}

type Response struct {
	Results []Item `json:"results"`
}

// ParseRequest decodes a batch request body. A body that parses but has no
// string array under "emails" is an empty batch.
func ParseRequest(body []byte) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	field, ok := raw["emails"]
	if !ok {
		return nil, ErrEmptyBatch
	}

	var emails []string
	if err := json.Unmarshal(field, &emails); err != nil || emails == nil {
		return nil, ErrEmptyBatch
	}
	return emails, nil
}

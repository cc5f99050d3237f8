// Package extraction turns uploaded certificate documents into coverage rows.
// The AI service is untrusted: its reply is kept raw until Translate applies
// explicit defaults.
package extraction

import "context"

type Document struct {
	FileName    string
	ContentType string
	Data        []byte
}

// RawResult is the unvalidated reply of the extraction service. Fields hold
// whatever JSON the service produced.
type RawResult struct {
	Success     bool             `json:"success"`
	InsuredName any              `json:"insured_name"`
	Entities    any              `json:"additional_insured_entities"`
	Coverages   []map[string]any `json:"coverages"`
	UserMessage string           `json:"user_message"`
}

// Gateway performs one extraction. A returned error and a RawResult with
// Success false both mean the document produced no data.
type Gateway interface {
	Extract(ctx context.Context, doc Document) (*RawResult, error)
}

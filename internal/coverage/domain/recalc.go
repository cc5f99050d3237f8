package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type RecalculateTemplateRequest struct {
	OrgID      snowflake.ID
	ActorID    string
	TemplateID snowflake.ID
}

type RecalculateEntityRequest struct {
	OrgID    snowflake.ID
	ActorID  string
	EntityID snowflake.ID
	// Reason is recorded on the activity event, e.g. "certificate_confirmed".
	Reason string
}

type EntityOutcome struct {
	EntityID      snowflake.ID     `json:"entity_id"`
	CertificateID *snowflake.ID    `json:"certificate_id,omitempty"`
	Previous      ComplianceStatus `json:"previous_status"`
	Status        ComplianceStatus `json:"status"`
	Changed       bool             `json:"changed"`
	Results       int              `json:"results"`
}

type EntityFailure struct {
	EntityID snowflake.ID `json:"entity_id"`
	Error    string       `json:"error"`
}

// Summary reports a template cascade. Entity failures are collected, never
// rolled back across entities.
type Summary struct {
	TemplateID snowflake.ID    `json:"template_id"`
	Total      int             `json:"total"`
	Processed  int             `json:"processed"`
	Changed    int             `json:"changed"`
	Pending    int             `json:"pending"`
	Failed     int             `json:"failed"`
	Failures   []EntityFailure `json:"failures,omitempty"`
}

// Recalculator re-applies the comparator to persisted certificates.
type Recalculator interface {
	RecalculateTemplate(ctx context.Context, req RecalculateTemplateRequest) (Summary, error)
	RecalculateEntity(ctx context.Context, req RecalculateEntityRequest) (EntityOutcome, error)
}

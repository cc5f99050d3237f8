package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/dustin/go-humanize"
	"github.com/smallbiznis/covercheck/internal/apperror"
	coveragedomain "github.com/smallbiznis/covercheck/internal/coverage/domain"
)

// GenericFailureMessage is shown when the gateway gives no message of its own.
const GenericFailureMessage = "We couldn't process this document. Please try again."

// ReasonConfirmed is the recalculation reason recorded after a review.
const ReasonConfirmed = "certificate_confirmed"

type UploadRequest struct {
	OrgID       snowflake.ID
	ActorID     string
	EntityID    snowflake.ID
	FileName    string
	ContentType string
	Data        []byte
}

type ConfirmRequest struct {
	OrgID         snowflake.ID
	ActorID       string
	CertificateID snowflake.ID
}

type GetRequest struct {
	OrgID snowflake.ID
	ID    snowflake.ID
}

type ListByEntityRequest struct {
	OrgID    snowflake.ID
	EntityID snowflake.ID
}

// Detail is a certificate with its extraction output and latest comparison.
type Detail struct {
	Certificate
	Coverages   []coveragedomain.ExtractedCoverage `json:"coverages"`
	Results     []coveragedomain.ComplianceResult  `json:"results"`
	DownloadURL string                             `json:"download_url,omitempty"`
}

// ConfirmResponse carries the confirmed certificate. The confirmation stands
// even when the follow-up recalculation fails; RecalculationError reports it
// and Outcome is then nil.
type ConfirmResponse struct {
	Certificate        Certificate                   `json:"certificate"`
	Outcome            *coveragedomain.EntityOutcome `json:"outcome,omitempty"`
	RecalculationError string                        `json:"recalculation_error,omitempty"`
}

type Service interface {
	Upload(ctx context.Context, req UploadRequest) (Detail, error)
	Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResponse, error)
	GetByID(ctx context.Context, req GetRequest) (Detail, error)
	ListByEntity(ctx context.Context, req ListByEntityRequest) ([]Certificate, error)
}

var (
	ErrInvalidOrganization = apperror.Validation("invalid_organization", "org_id", "organization is required")
	ErrEmptyDocument       = apperror.Validation("empty_document", "file", "document is empty")
	ErrNotPDF              = apperror.Validation("unsupported_document", "file", "only PDF certificates are supported")
	ErrNotFound            = apperror.NotFound("certificate_not_found", "certificate not found")
	ErrEntityNotFound      = apperror.NotFound("entity_not_found", "entity not found")
	ErrNotReviewable       = apperror.Validation("certificate_not_reviewable", "processing_status",
		"only certificates with extracted data can be confirmed")
)

func ErrTooLarge(max int64) error {
	return apperror.Validation("document_too_large", "file",
		"document exceeds the maximum size of "+humanize.IBytes(uint64(max)))
}

// ErrQuotaExceeded reports an exhausted extraction window. It is never retried
// by the server; the caller waits for retryAfter.
func ErrQuotaExceeded(orgWide bool, retryAfter time.Duration) error {
	wait := retryAfter.Round(time.Minute)
	if wait < time.Minute {
		wait = time.Minute
	}
	what := "this entity"
	if orgWide {
		what = "this organization"
	}
	return apperror.RateLimited("extraction_quota_exceeded",
		"extraction limit reached for "+what+", try again in "+humanize.Comma(int64(wait/time.Minute))+" minutes")
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ExtractionUpdate is the terminal write after the gateway returns.
type ExtractionUpdate struct {
	InsuredName       *string
	InsuredNameMatch  *bool
	ExtractedEntities []string
	DroppedCoverages  int
	At                time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, cert *Certificate) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Certificate, error)
	ListByEntity(ctx context.Context, db *gorm.DB, orgID, entityID snowflake.ID) ([]Certificate, error)
	// FindCurrent returns the latest review_confirmed certificate by upload
	// time, then id; nil when the entity has none.
	FindCurrent(ctx context.Context, db *gorm.DB, entityID snowflake.ID) (*Certificate, error)

	// The Mark* transitions only apply from the expected source state and
	// report whether a row changed.
	MarkExtracted(ctx context.Context, db *gorm.DB, id snowflake.ID, update ExtractionUpdate) (bool, error)
	MarkFailed(ctx context.Context, db *gorm.DB, id snowflake.ID, message string, at time.Time) (bool, error)
	MarkConfirmed(ctx context.Context, db *gorm.DB, id snowflake.ID, actorID *string, at time.Time) (bool, error)

	// ListStaleProcessing returns certificates still processing that were
	// uploaded before cutoff, oldest first.
	ListStaleProcessing(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Certificate, error)
}

package orgcontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestOrgIDFromContext(t *testing.T) {
	ctx := WithOrgID(context.Background(), 42)
	id, ok := OrgIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(42), id)

	_, ok = OrgIDFromContext(context.Background())
	assert.False(t, ok)

	_, ok = OrgIDFromContext(WithOrgID(context.Background(), 0))
	assert.False(t, ok)
}

func TestActorIDFromContext(t *testing.T) {
	assert.Equal(t, "user_1", ActorIDFromContext(WithActorID(context.Background(), " user_1 ")))
	assert.Equal(t, "", ActorIDFromContext(context.Background()))
}

package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	appctx "stockledger/internal/core/context"
)

func TestActor(t *testing.T) {
	assert.Equal(t, SystemActor, Actor(context.Background()))

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "emp-42"})
	assert.Equal(t, "emp-42", Actor(ctx))
}

func TestEnrichCreatedByDirect(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "emp-42"})

	var createdBy, updatedBy string
	EnrichCreatedByDirect(ctx, &createdBy, &updatedBy)
	assert.Equal(t, "emp-42", createdBy)
	assert.Equal(t, "emp-42", updatedBy)

	createdBy = "emp-1"
	EnrichCreatedByDirect(ctx, &createdBy, &updatedBy)
	assert.Equal(t, "emp-1", createdBy)

	EnrichUpdatedByDirect(context.Background(), &updatedBy)
	assert.Equal(t, SystemActor, updatedBy)
}

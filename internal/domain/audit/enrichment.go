// Package audit provides utilities for attribution of domain changes.
package audit

import (
	"context"

	appctx "stockledger/internal/core/context"
)

// SystemActor is recorded when no authenticated user is present.
const SystemActor = "system"

// Actor returns the user id from context, or SystemActor.
func Actor(ctx context.Context) string {
	if userID := appctx.GetUserID(ctx); userID != "" {
		return userID
	}
	return SystemActor
}

// EnrichCreatedByDirect sets CreatedBy and UpdatedBy from the context user.
// Use in BeforeCreate hooks.
func EnrichCreatedByDirect(ctx context.Context, createdBy, updatedBy *string) {
	actor := Actor(ctx)
	if createdBy != nil && *createdBy == "" {
		*createdBy = actor
	}
	if updatedBy != nil {
		*updatedBy = actor
	}
}

// EnrichUpdatedByDirect sets UpdatedBy from the context user.
// Use in BeforeUpdate hooks.
func EnrichUpdatedByDirect(ctx context.Context, updatedBy *string) {
	if updatedBy != nil {
		*updatedBy = Actor(ctx)
	}
}

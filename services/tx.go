package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"gorm.io/gorm"
)

// retryBackoff is the pause before the single retry of a failed transaction.
var retryBackoff = 50 * time.Millisecond

// runInTx executes fn in one transaction. A failure that is not a domain
// result (serialization conflict, dropped connection...) is retried once.
func runInTx(ctx context.Context, db *gorm.DB, op string, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	if err == nil || isDomainError(err) || errors.Is(err, context.Canceled) {
		return err
	}

	utils.LogWarn("⚠️ [%s] transaction failed, retrying once: %v", op, err)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryBackoff):
	}

	err = db.WithContext(ctx).Transaction(fn)
	if err == nil || isDomainError(err) {
		return err
	}
	utils.LogError("❌ [%s] transaction failed after retry: %v", op, err)
	return fmt.Errorf("%w: %s: %v", ErrTransient, op, err)
}

// validActorID enforces the shape of the opaque actor identifier.
func validActorID(id string) error {
	if id == "" || len(id) > 128 {
		return ErrInvalidActor
	}
	return nil
}

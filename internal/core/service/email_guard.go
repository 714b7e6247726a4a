package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/igor322/account-service/internal/core/domain"
	"github.com/igor322/account-service/internal/core/ports"
)

// EmailGuard answers whether an email already belongs to another account.
//
// The check is advisory: two concurrent writers can both pass it. The
// repository's unique index is what keeps emails unique.
type EmailGuard struct {
	repo ports.AccountRepository
}

func NewEmailGuard(repo ports.AccountRepository) *EmailGuard {
	return &EmailGuard{repo: repo}
}

// IsEmailTaken normalizes email and reports whether it is bound to an account
// other than excludeID. Pass excludeID 0 when creating; ids start at 1.
func (g *EmailGuard) IsEmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	existing, err := g.repo.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("email lookup: %w", err)
	}
	return existing.ID != excludeID, nil
}

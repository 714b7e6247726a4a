package ports

import (
	"context"

	"github.com/igor322/account-service/internal/core/domain"
)

// AccountService defines the account use cases. Every returned account is
// redacted: PasswordHash is always empty.
type AccountService interface {
	HealthCheck(ctx context.Context) error
	Create(ctx context.Context, in domain.AccountInput) (*domain.Account, error)
	GetOne(ctx context.Context, id int64) (*domain.Account, error)
	GetAll(ctx context.Context) ([]*domain.Account, error)
	Update(ctx context.Context, id int64, in domain.AccountInput) (*domain.Account, error)
	Delete(ctx context.Context, id int64) (*domain.Account, error)
}

// PasswordHasher is the one-way credential transform used by the service.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

package ports

import (
	"context"

	"github.com/igor322/account-service/internal/core/domain"
)

// AccountRepository defines durable storage for accounts.
//
// Implementations must enforce email uniqueness at the storage layer and
// report a violation as domain.ErrEmailTaken from Insert and Update. Every
// write is a single atomic statement.
type AccountRepository interface {
	// FindByID returns domain.ErrAccountNotFound when no row matches.
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	// FindByEmail expects an already normalized email.
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	// FindAll returns every account ordered by id ascending.
	FindAll(ctx context.Context) ([]*domain.Account, error)
	// Insert assigns the id and returns the stored record.
	Insert(ctx context.Context, account *domain.Account) (*domain.Account, error)
	// Update overwrites name, email and password hash of account.ID.
	Update(ctx context.Context, account *domain.Account) (*domain.Account, error)
	// Remove hard-deletes the account and returns its pre-removal snapshot.
	Remove(ctx context.Context, id int64) (*domain.Account, error)
	Ping(ctx context.Context) error
}

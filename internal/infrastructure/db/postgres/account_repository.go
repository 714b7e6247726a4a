package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/igor322/account-service/internal/core/domain"
	"github.com/igor322/account-service/internal/core/ports"
)

// uniqueViolation is the SQLSTATE raised by the users_email_lower_key index.
const uniqueViolation = "23505"

const accountColumns = `id, name, email, password`

// AccountRepository implements ports.AccountRepository on PostgreSQL. Each
// method issues exactly one statement.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *sql.DB) ports.AccountRepository {
	return &AccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE id = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("find account by id", err)
	}
	return a, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE LOWER(email) = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, classify("find account by email", err)
	}
	return a, nil
}

func (r *AccountRepository) FindAll(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify("list accounts", err)
	}
	defer rows.Close()

	accounts := []*domain.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, classify("scan account", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list accounts", err)
	}
	return accounts, nil
}

func (r *AccountRepository) Insert(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `INSERT INTO users (name, email, password)
		VALUES ($1, $2, $3)
		RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query,
		account.Name, account.Email, account.PasswordHash))
	if err != nil {
		return nil, classify("insert account", err)
	}
	return a, nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `UPDATE users
		SET name = $2, email = $3, password = $4
		WHERE id = $1
		RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query,
		account.ID, account.Name, account.Email, account.PasswordHash))
	if err != nil {
		return nil, classify("update account", err)
	}
	return a, nil
}

func (r *AccountRepository) Remove(ctx context.Context, id int64) (*domain.Account, error) {
	query := `DELETE FROM users WHERE id = $1 RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, classify("remove account", err)
	}
	return a, nil
}

func (r *AccountRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// classify maps driver errors onto the domain taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	if isUniqueViolation(err) {
		return domain.ErrEmailTaken
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrRepositoryUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

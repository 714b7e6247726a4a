package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/igor322/account-service/internal/core/domain"
	"github.com/igor322/account-service/internal/core/ports"
	"github.com/igor322/account-service/internal/core/schema"
	"github.com/igor322/account-service/internal/pkg/metrics"
)

// AccountService implements ports.AccountService.
//
// Every write follows the same order: existence check, validation, email
// uniqueness, password confirmation and hashing, persistence. Each step may
// end the operation before the next, more expensive one runs.
type AccountService struct {
	repo      ports.AccountRepository
	validator *schema.Validator
	guard     *EmailGuard
	hasher    ports.PasswordHasher
	logger    zerolog.Logger
}

func NewAccountService(repo ports.AccountRepository, hasher ports.PasswordHasher, logger zerolog.Logger) *AccountService {
	return &AccountService{
		repo:      repo,
		validator: schema.New(),
		guard:     NewEmailGuard(repo),
		hasher:    hasher,
		logger:    logger,
	}
}

// HealthCheck verifies the repository is reachable.
func (s *AccountService) HealthCheck(ctx context.Context) (err error) {
	defer s.observe("health", &err)

	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("repository ping failed")
		return fmt.Errorf("health check: %w: %w", domain.ErrRepositoryUnavailable, err)
	}
	return nil
}

// Create validates and stores a new account.
func (s *AccountService) Create(ctx context.Context, in domain.AccountInput) (_ *domain.Account, err error) {
	defer s.observe("create", &err)

	fields, err := s.validator.Validate(in, schema.ModeCreate)
	if err != nil {
		return nil, err
	}

	email := domain.NormalizeEmail(*fields.Email)
	if err := s.ensureEmailAvailable(ctx, email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hashConfirmed(fields)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Insert(ctx, &domain.Account{
		Name:         *fields.Name,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, s.writeFailed("create", 0, err)
	}

	s.logger.Info().Int64("account_id", created.ID).Msg("account created")
	return created.Redacted(), nil
}

// GetOne returns the account with the given id.
func (s *AccountService) GetOne(ctx context.Context, id int64) (_ *domain.Account, err error) {
	defer s.observe("get_one", &err)

	account, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return account.Redacted(), nil
}

// GetAll returns every account ordered by id ascending.
func (s *AccountService) GetAll(ctx context.Context) (_ []*domain.Account, err error) {
	defer s.observe("get_all", &err)

	accounts, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list accounts")
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	out := make([]*domain.Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Redacted())
	}
	return out, nil
}

// Update merges the fields present in in into the stored account. Fields
// absent from in are left untouched; an empty payload performs no write.
func (s *AccountService) Update(ctx context.Context, id int64, in domain.AccountInput) (_ *domain.Account, err error) {
	defer s.observe("update", &err)

	existing, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	fields, err := s.validator.Validate(in, schema.ModeUpdate)
	if err != nil {
		return nil, err
	}

	merged := *existing
	changed := false

	if fields.Email != nil {
		email := domain.NormalizeEmail(*fields.Email)
		if err := s.ensureEmailAvailable(ctx, email, id); err != nil {
			return nil, err
		}
		merged.Email = email
		changed = true
	}

	if fields.Password != nil {
		hash, err := s.hashConfirmed(fields)
		if err != nil {
			return nil, err
		}
		merged.PasswordHash = hash
		changed = true
	}

	if fields.Name != nil {
		merged.Name = *fields.Name
		changed = true
	}

	if !changed {
		return existing.Redacted(), nil
	}

	updated, err := s.repo.Update(ctx, &merged)
	if err != nil {
		return nil, s.writeFailed("update", id, err)
	}

	s.logger.Info().Int64("account_id", id).Msg("account updated")
	return updated.Redacted(), nil
}

// Delete removes the account and returns its last state.
func (s *AccountService) Delete(ctx context.Context, id int64) (_ *domain.Account, err error) {
	defer s.observe("delete", &err)

	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}

	removed, err := s.repo.Remove(ctx, id)
	if err != nil {
		return nil, s.writeFailed("delete", id, err)
	}

	s.logger.Info().Int64("account_id", id).Msg("account deleted")
	return removed.Redacted(), nil
}

// VerifyPassword reports whether plaintext matches the stored password of
// account id.
func (s *AccountService) VerifyPassword(ctx context.Context, id int64, plaintext string) (bool, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return false, err
	}
	return s.hasher.Verify(plaintext, account.PasswordHash), nil
}

func (s *AccountService) find(ctx context.Context, id int64) (*domain.Account, error) {
	if id <= 0 {
		return nil, domain.ErrAccountNotFound
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		s.logger.Error().Err(err).Int64("account_id", id).Msg("failed to load account")
		return nil, fmt.Errorf("find account %d: %w", id, err)
	}
	return account, nil
}

func (s *AccountService) ensureEmailAvailable(ctx context.Context, email string, excludeID int64) error {
	taken, err := s.guard.IsEmailTaken(ctx, email, excludeID)
	if err != nil {
		s.logger.Error().Err(err).Msg("email uniqueness check failed")
		return err
	}
	if taken {
		metrics.EmailConflictsTotal.WithLabelValues("precheck").Inc()
		s.logger.Warn().Str("source", "precheck").Int64("account_id", excludeID).Msg("email already in use")
		return domain.ErrEmailTaken
	}
	return nil
}

// hashConfirmed hashes the password once confirmPassword is known to match.
// A mismatch never reaches the hasher.
func (s *AccountService) hashConfirmed(fields domain.AccountInput) (string, error) {
	if fields.ConfirmPassword == nil || *fields.ConfirmPassword != *fields.Password {
		return "", domain.ErrPasswordMismatch
	}

	start := time.Now()
	hash, err := s.hasher.Hash(*fields.Password)
	metrics.PasswordHashDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Error().Err(err).Msg("password hashing failed")
		return "", err
	}
	return hash, nil
}

// writeFailed translates a repository write error. A unique constraint
// violation surfaces as the same conflict the guard would have produced.
func (s *AccountService) writeFailed(op string, id int64, err error) error {
	switch {
	case errors.Is(err, domain.ErrEmailTaken):
		metrics.EmailConflictsTotal.WithLabelValues("constraint").Inc()
		s.logger.Warn().Str("source", "constraint").Int64("account_id", id).Msg("email already in use")
		return domain.ErrEmailTaken
	case errors.Is(err, domain.ErrAccountNotFound):
		return domain.ErrAccountNotFound
	}
	s.logger.Error().Err(err).Str("operation", op).Int64("account_id", id).Msg("account write failed")
	return fmt.Errorf("%s account: %w", op, err)
}

func (s *AccountService) observe(op string, err *error) {
	metrics.AccountOperationsTotal.WithLabelValues(op, string(domain.CategoryOf(*err))).Inc()
}

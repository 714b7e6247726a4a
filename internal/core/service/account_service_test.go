package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/igor322/account-service/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub repository
// ---------------------------------------------------------------------------

// stubAccountRepo mirrors the storage contract: monotonic ids, a unique
// index on email, atomic single-row writes.
type stubAccountRepo struct {
	mu      sync.Mutex
	byID    map[int64]*domain.Account
	nextID  int64
	pingErr error
	findErr error

	// skipEmailLookup makes FindByEmail always miss, simulating a
	// concurrent writer that lands after the guard has run.
	skipEmailLookup bool

	inserts int
	updates int
	removes int
}

func newStubAccountRepo() *stubAccountRepo {
	return &stubAccountRepo{byID: make(map[int64]*domain.Account)}
}

func cloneAccount(a *domain.Account) *domain.Account {
	clone := *a
	return &clone
}

func (r *stubAccountRepo) emailOwner(email string) (int64, bool) {
	for id, a := range r.byID {
		if strings.EqualFold(a.Email, email) {
			return id, true
		}
	}
	return 0, false
}

func (r *stubAccountRepo) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.skipEmailLookup {
		return nil, domain.ErrAccountNotFound
	}
	for _, a := range r.byID {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (r *stubAccountRepo) FindAll(_ context.Context) ([]*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Account, 0, len(r.byID))
	for id := int64(1); id <= r.nextID; id++ {
		if a, ok := r.byID[id]; ok {
			out = append(out, cloneAccount(a))
		}
	}
	return out, nil
}

func (r *stubAccountRepo) Insert(_ context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if _, taken := r.emailOwner(a.Email); taken {
		return nil, domain.ErrEmailTaken
	}
	r.nextID++
	stored := cloneAccount(a)
	stored.ID = r.nextID
	r.byID[stored.ID] = stored
	return cloneAccount(stored), nil
}

func (r *stubAccountRepo) Update(_ context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if _, ok := r.byID[a.ID]; !ok {
		return nil, domain.ErrAccountNotFound
	}
	if owner, taken := r.emailOwner(a.Email); taken && owner != a.ID {
		return nil, domain.ErrEmailTaken
	}
	r.byID[a.ID] = cloneAccount(a)
	return cloneAccount(a), nil
}

func (r *stubAccountRepo) Remove(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removes++
	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	delete(r.byID, id)
	return a, nil
}

func (r *stubAccountRepo) Ping(_ context.Context) error { return r.pingErr }

// countingHasher is a cheap reversible-for-tests hasher that records calls.
type countingHasher struct {
	mu    sync.Mutex
	calls int
	seq   int
}

func (h *countingHasher) Hash(plaintext string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.seq++
	return "hashed:" + plaintext + ":" + strings.Repeat("#", h.seq), nil
}

func (h *countingHasher) Verify(plaintext, hash string) bool {
	return strings.HasPrefix(hash, "hashed:"+plaintext+":")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func str(s string) *string { return &s }

func newTestService() (*AccountService, *stubAccountRepo, *countingHasher) {
	repo := newStubAccountRepo()
	hasher := &countingHasher{}
	return NewAccountService(repo, hasher, zerolog.Nop()), repo, hasher
}

func createInput(name, email, password string) domain.AccountInput {
	return domain.AccountInput{
		Name:            str(name),
		Email:           str(email),
		Password:        str(password),
		ConfirmPassword: str(password),
	}
}

func mustCreate(t *testing.T, svc *AccountService, name, email string) *domain.Account {
	t.Helper()
	a, err := svc.Create(context.Background(), createInput(name, email, "p1"))
	if err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	return a
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestAccountService_Create_NormalizesEmailAndRedacts(t *testing.T) {
	svc, repo, hasher := newTestService()

	a, err := svc.Create(context.Background(), createInput("Ann", "A@X.com", "p1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a.ID != 1 {
		t.Errorf("expected id 1, got %d", a.ID)
	}
	if a.Email != "a@x.com" {
		t.Errorf("expected normalized email, got %q", a.Email)
	}
	if a.PasswordHash != "" {
		t.Error("returned account must be redacted")
	}

	stored := repo.byID[1]
	if stored.Email != "a@x.com" {
		t.Errorf("stored email not normalized: %q", stored.Email)
	}
	if stored.PasswordHash == "p1" || !hasher.Verify("p1", stored.PasswordHash) {
		t.Errorf("stored password must be a hash of p1, got %q", stored.PasswordHash)
	}
}

func TestAccountService_Create_ValidationError(t *testing.T) {
	svc, repo, hasher := newTestService()

	_, err := svc.Create(context.Background(), domain.AccountInput{Name: str("Al"), Email: str("nope")})

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 4 {
		t.Errorf("expected 4 failing fields, got %+v", ve.Fields)
	}
	if repo.inserts != 0 || hasher.calls != 0 {
		t.Error("validation failure must not hash or write")
	}
}

func TestAccountService_Create_DuplicateEmailConflicts(t *testing.T) {
	svc, repo, hasher := newTestService()
	mustCreate(t, svc, "Ann", "A@X.com")
	hashesBefore := hasher.calls

	_, err := svc.Create(context.Background(), createInput("Bob", "a@x.com", "p2"))
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if hasher.calls != hashesBefore {
		t.Error("conflict must be detected before hashing")
	}
	if repo.inserts != 1 {
		t.Errorf("expected a single insert, got %d", repo.inserts)
	}
}

func TestAccountService_Create_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc, "Ann", "ann@example.com")

	_, err := svc.Create(context.Background(), createInput("Ann Two", "ANN@Example.COM", "p"))
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAccountService_Create_ConstraintViolationIsConflict(t *testing.T) {
	svc, repo, _ := newTestService()
	mustCreate(t, svc, "Ann", "a@x.com")
	repo.skipEmailLookup = true

	_, err := svc.Create(context.Background(), createInput("Bob", "a@x.com", "p2"))
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken from storage constraint, got %v", err)
	}
	if domain.CategoryOf(err) != domain.StatusConflict {
		t.Errorf("expected conflict category, got %s", domain.CategoryOf(err))
	}
}

func TestAccountService_Create_PasswordMismatchNeverHashes(t *testing.T) {
	svc, repo, hasher := newTestService()

	_, err := svc.Create(context.Background(), domain.AccountInput{
		Name: str("Ann"), Email: str("a@x.com"), Password: str("a"), ConfirmPassword: str("b"),
	})
	if !errors.Is(err, domain.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if hasher.calls != 0 {
		t.Error("hash must not run on mismatch")
	}
	if repo.inserts != 0 {
		t.Error("repository must not be written on mismatch")
	}
}

func TestAccountService_Create_ConcurrentSameEmail(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.skipEmailLookup = true

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), createInput("Racer", "race@x.com", "p"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, domain.ErrEmailTaken):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one successful create, got %d", ok)
	}
	if len(repo.byID) != 1 {
		t.Fatalf("expected one stored account, got %d", len(repo.byID))
	}
}

// ---------------------------------------------------------------------------
// GetOne / GetAll
// ---------------------------------------------------------------------------

func TestAccountService_GetOne(t *testing.T) {
	svc, _, _ := newTestService()
	created := mustCreate(t, svc, "Ann", "a@x.com")

	got, err := svc.GetOne(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Ann" || got.Email != "a@x.com" {
		t.Errorf("unexpected account: %+v", got)
	}
	if got.PasswordHash != "" {
		t.Error("GetOne must redact the password")
	}
}

func TestAccountService_GetOne_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	for _, id := range []int64{42, 0, -1} {
		if _, err := svc.GetOne(context.Background(), id); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("id %d: expected ErrAccountNotFound, got %v", id, err)
		}
	}
}

func TestAccountService_GetOne_RepositoryFailure(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.findErr = errors.New("connection reset")

	_, err := svc.GetOne(context.Background(), 1)
	if err == nil || domain.CategoryOf(err) != domain.StatusServerError {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestAccountService_GetAll_OrderedAndRedacted(t *testing.T) {
	svc, _, _ := newTestService()
	mustCreate(t, svc, "Ann", "a@x.com")
	mustCreate(t, svc, "Bob", "b@x.com")
	mustCreate(t, svc, "Cid", "c@x.com")

	all, err := svc.GetAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(all))
	}
	for i, a := range all {
		if a.ID != int64(i+1) {
			t.Errorf("position %d: expected id %d, got %d", i, i+1, a.ID)
		}
		if a.PasswordHash != "" {
			t.Errorf("account %d not redacted", a.ID)
		}
	}
}

// ---------------------------------------------------------------------------
// Update
// ---------------------------------------------------------------------------

func TestAccountService_Update_OwnEmailIsNotConflict(t *testing.T) {
	svc, _, _ := newTestService()
	created := mustCreate(t, svc, "Ann", "a@x.com")

	got, err := svc.Update(context.Background(), created.ID, domain.AccountInput{Email: str("A@X.com")})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Email != "a@x.com" {
		t.Errorf("unexpected email %q", got.Email)
	}
}

func TestAccountService_Update_OtherAccountsEmailConflicts(t *testing.T) {
	svc, repo, _ := newTestService()
	mustCreate(t, svc, "Ann", "a@x.com")
	bob := mustCreate(t, svc, "Bob", "b@x.com")

	_, err := svc.Update(context.Background(), bob.ID, domain.AccountInput{Email: str("A@x.com")})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if repo.updates != 0 {
		t.Error("conflict must not write")
	}
	if repo.byID[bob.ID].Email != "b@x.com" {
		t.Error("bob's email must be unchanged")
	}
}

func TestAccountService_Update_ConstraintViolationIsConflict(t *testing.T) {
	svc, repo, _ := newTestService()
	mustCreate(t, svc, "Ann", "a@x.com")
	bob := mustCreate(t, svc, "Bob", "b@x.com")
	repo.skipEmailLookup = true

	_, err := svc.Update(context.Background(), bob.ID, domain.AccountInput{Email: str("a@x.com")})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAccountService_Update_EmptyPayloadIsNoop(t *testing.T) {
	svc, repo, _ := newTestService()
	created := mustCreate(t, svc, "Ann", "a@x.com")
	before := *repo.byID[created.ID]

	got, err := svc.Update(context.Background(), created.ID, domain.AccountInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != before.Name || got.Email != before.Email {
		t.Errorf("account changed: %+v", got)
	}
	if repo.updates != 0 {
		t.Error("empty payload must not write")
	}
	if *repo.byID[created.ID] != before {
		t.Error("stored account changed")
	}
}

func TestAccountService_Update_NameOnlyLeavesEmailAndHash(t *testing.T) {
	svc, repo, _ := newTestService()
	created := mustCreate(t, svc, "Ann", "a@x.com")
	before := *repo.byID[created.ID]

	got, err := svc.Update(context.Background(), created.ID, domain.AccountInput{Name: str("Xavier")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Xavier" {
		t.Errorf("expected new name, got %q", got.Name)
	}

	after := repo.byID[created.ID]
	if after.Email != before.Email {
		t.Errorf("email changed: %q -> %q", before.Email, after.Email)
	}
	if after.PasswordHash != before.PasswordHash {
		t.Error("password hash changed")
	}
}

func TestAccountService_Update_PasswordRehashes(t *testing.T) {
	svc, repo, hasher := newTestService()
	created := mustCreate(t, svc, "Ann", "a@x.com")

	_, err := svc.Update(context.Background(), created.ID, domain.AccountInput{
		Password: str("new-secret"), ConfirmPassword: str("new-secret"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasher.Verify("new-secret", repo.byID[created.ID].PasswordHash) {
		t.Error("stored hash does not match new password")
	}

	ok, err := svc.VerifyPassword(context.Background(), created.ID, "new-secret")
	if err != nil || !ok {
		t.Errorf("VerifyPassword = %v, %v; want true, nil", ok, err)
	}
	ok, _ = svc.VerifyPassword(context.Background(), created.ID, "p1")
	if ok {
		t.Error("old password must no longer verify")
	}
}

func TestAccountService_Update_PasswordMismatchNeverHashes(t *testing.T) {
	svc, repo, hasher := newTestService()
	created := mustCreate(t, svc, "Ann", "a@x.com")
	hashesBefore := hasher.calls

	_, err := svc.Update(context.Background(), created.ID, domain.AccountInput{
		Password: str("a"), ConfirmPassword: str("b"),
	})
	if !errors.Is(err, domain.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if hasher.calls != hashesBefore || repo.updates != 0 {
		t.Error("mismatch must not hash or write")
	}
}

func TestAccountService_Update_NotFoundBeforeValidation(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Update(context.Background(), 99, domain.AccountInput{Name: str("x")})
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountService_Update_ValidationError(t *testing.T) {
	svc, repo, _ := newTestService()
	created := mustCreate(t, svc, "Ann", "a@x.com")

	_, err := svc.Update(context.Background(), created.ID, domain.AccountInput{Name: str("x"), Email: str("bad")})

	var ve *domain.ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 2 {
		t.Fatalf("expected 2 field errors, got %v", err)
	}
	if repo.updates != 0 {
		t.Error("validation failure must not write")
	}
}

// ---------------------------------------------------------------------------
// Delete / HealthCheck
// ---------------------------------------------------------------------------

func TestAccountService_Delete_ThenGetOneNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	created := mustCreate(t, svc, "Ann", "a@x.com")

	removed, err := svc.Delete(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.ID != created.ID || removed.Email != "a@x.com" {
		t.Errorf("expected pre-delete snapshot, got %+v", removed)
	}
	if removed.PasswordHash != "" {
		t.Error("deleted snapshot must be redacted")
	}

	if _, err := svc.GetOne(context.Background(), created.ID); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound after delete, got %v", err)
	}
}

func TestAccountService_Delete_NotFound(t *testing.T) {
	svc, repo, _ := newTestService()

	if _, err := svc.Delete(context.Background(), 7); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if repo.removes != 0 {
		t.Error("remove must not run for a missing account")
	}
}

func TestAccountService_DeletedIDIsNotReused(t *testing.T) {
	svc, _, _ := newTestService()
	first := mustCreate(t, svc, "Ann", "a@x.com")
	if _, err := svc.Delete(context.Background(), first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	second := mustCreate(t, svc, "Ann", "a@x.com")
	if second.ID == first.ID {
		t.Fatalf("id %d reused", first.ID)
	}
}

func TestAccountService_HealthCheck(t *testing.T) {
	svc, repo, _ := newTestService()

	if err := svc.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	repo.pingErr = errors.New("dial tcp: refused")
	err := svc.HealthCheck(context.Background())
	if !errors.Is(err, domain.ErrRepositoryUnavailable) {
		t.Fatalf("expected ErrRepositoryUnavailable, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Uniqueness across mixed operations
// ---------------------------------------------------------------------------

func TestAccountService_EmailsStayUnique(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	ann := mustCreate(t, svc, "Ann", "ann@x.com")
	bob := mustCreate(t, svc, "Bob", "bob@x.com")

	_, _ = svc.Update(ctx, bob.ID, domain.AccountInput{Email: str("ANN@x.com")})
	_, _ = svc.Create(ctx, createInput("Ann2", "Ann@X.com", "p"))
	_, _ = svc.Update(ctx, ann.ID, domain.AccountInput{Email: str("carol@x.com")})
	_, _ = svc.Update(ctx, bob.ID, domain.AccountInput{Email: str("ann@x.com")})
	_, _ = svc.Create(ctx, createInput("Carol", "CAROL@x.com", "p"))

	seen := map[string]int64{}
	for id, a := range repo.byID {
		key := strings.ToLower(a.Email)
		if other, dup := seen[key]; dup {
			t.Fatalf("accounts %d and %d share email %q", other, id, key)
		}
		seen[key] = id
	}
	if repo.byID[bob.ID].Email != "ann@x.com" {
		t.Errorf("bob should own ann@x.com after ann moved, got %q", repo.byID[bob.ID].Email)
	}
}

package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/igor322/account-service/internal/core/domain"
	"github.com/igor322/account-service/internal/core/ports"
)

const (
	accountsCollection = "accounts"
	countersCollection = "counters"

	// accountSequence names the counters document that hands out account ids.
	accountSequence = "accounts"
	emailIndexName  = "accounts_email_key"
)

// AccountRepository implements ports.AccountRepository on MongoDB. Identifiers
// come from a monotonically increasing counter so they are never reused.
type AccountRepository struct {
	db       *mongo.Database
	coll     *mongo.Collection
	counters *mongo.Collection
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *mongo.Database) ports.AccountRepository {
	return &AccountRepository{
		db:       db,
		coll:     db.Collection(accountsCollection),
		counters: db.Collection(countersCollection),
	}
}

type accountDoc struct {
	ID       int64  `bson:"_id"`
	Name     string `bson:"name"`
	Email    string `bson:"email"`
	Password string `bson:"password"`
}

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func fromDomain(a *domain.Account) accountDoc {
	return accountDoc{ID: a.ID, Name: a.Name, Email: a.Email, Password: a.PasswordHash}
}

func (d accountDoc) toDomain() *domain.Account {
	return &domain.Account{ID: d.ID, Name: d.Name, Email: d.Email, PasswordHash: d.Password}
}

// emailIndex returns the unique index backing email uniqueness. Emails are
// stored normalized so a plain unique index is case-insensitive in effect.
func emailIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName(emailIndexName),
	}
}

// EnsureIndexes creates the indexes the repository relies on. It is
// idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(accountsCollection).Indexes().CreateOne(ctx, emailIndex()); err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	var doc accountDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, classify("find account by id", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var doc accountDoc
	if err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		return nil, classify("find account by email", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindAll(ctx context.Context) ([]*domain.Account, error) {
	cur, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, classify("list accounts", err)
	}
	defer cur.Close(ctx)

	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classify("list accounts", err)
	}

	accounts := make([]*domain.Account, 0, len(docs))
	for _, d := range docs {
		accounts = append(accounts, d.toDomain())
	}
	return accounts, nil
}

func (r *AccountRepository) Insert(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	doc := fromDomain(account)
	doc.ID = id
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, classify("insert account", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	update := bson.M{"$set": bson.M{
		"name":     account.Name,
		"email":    account.Email,
		"password": account.PasswordHash,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc accountDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": account.ID}, update, opts).Decode(&doc); err != nil {
		return nil, classify("update account", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Remove(ctx context.Context, id int64) (*domain.Account, error) {
	var doc accountDoc
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, classify("remove account", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Ping(ctx context.Context) error {
	if err := r.db.Client().Ping(ctx, nil); err != nil {
		return classify("ping", err)
	}
	return nil
}

func (r *AccountRepository) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var c counterDoc
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": accountSequence},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("next account id: %w: %w", domain.ErrRepositoryUnavailable, err)
	}
	return c.Seq, nil
}

// classify maps driver errors onto the domain taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrAccountNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrEmailTaken
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrRepositoryUnavailable, err)
}

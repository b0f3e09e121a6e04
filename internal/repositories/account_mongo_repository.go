package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vinted/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoAccountRepository stores accounts in the "users" collection.
type MongoAccountRepository struct {
	col *mongo.Collection
}

func NewMongoAccountRepository(db *mongo.Database) *MongoAccountRepository {
	return &MongoAccountRepository{col: db.Collection("users")}
}

// EnsureIndexes creates the unique email index and the token lookup index.
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "token", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo users indexes: %w", err)
	}
	return nil
}

func (r *MongoAccountRepository) Create(ctx context.Context, acct *models.Account) error {
	if acct.ID == "" {
		acct.ID = primitive.NewObjectID().Hex()
	}
	acct.CreatedAt = time.Now()
	acct.UpdatedAt = acct.CreatedAt
	if _, err := r.col.InsertOne(ctx, acct); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("mongo insert account: %w", ErrDuplicateEmail)
		}
		return fmt.Errorf("mongo insert account: %w", err)
	}
	return nil
}

func (r *MongoAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *MongoAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *MongoAccountRepository) GetByToken(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, fmt.Errorf("account by token: %w", ErrNotFound)
	}
	return r.findOne(ctx, bson.D{{Key: "token", Value: token}})
}

func (r *MongoAccountRepository) UpdateLoginState(ctx context.Context, acct *models.Account) error {
	set := bson.D{
		{Key: "loginTry", Value: acct.FailedLoginCount},
		{Key: "updated_at", Value: time.Now()},
	}
	var update bson.D
	if acct.LockUntil != nil {
		set = append(set, bson.E{Key: "lockedUntil", Value: *acct.LockUntil})
		update = bson.D{{Key: "$set", Value: set}}
	} else {
		update = bson.D{
			{Key: "$set", Value: set},
			{Key: "$unset", Value: bson.D{{Key: "lockedUntil", Value: ""}}},
		}
	}

	res, err := r.col.UpdateOne(ctx, bson.D{{Key: "_id", Value: acct.ID}}, update)
	if err != nil {
		return fmt.Errorf("mongo update login state: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account with ID %s not found for update: %w", acct.ID, ErrNotFound)
	}
	return nil
}

func (r *MongoAccountRepository) findOne(ctx context.Context, filter bson.D) (*models.Account, error) {
	var acct models.Account
	if err := r.col.FindOne(ctx, filter).Decode(&acct); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find account: %w", err)
	}
	return &acct, nil
}

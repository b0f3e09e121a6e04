package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vinted/internal/models"
	"vinted/internal/query"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoOps maps whitelisted operators to their store spelling.
var mongoOps = map[query.Op]string{
	query.Eq:  "$eq",
	query.Gt:  "$gt",
	query.Gte: "$gte",
	query.Lt:  "$lt",
	query.Lte: "$lte",
}

// MongoListingRepository stores listings in the "offers" collection.
type MongoListingRepository struct {
	col *mongo.Collection
}

func NewMongoListingRepository(db *mongo.Database) *MongoListingRepository {
	return &MongoListingRepository{col: db.Collection("offers")}
}

// EnsureIndexes creates the indexes backing the default sort and owner lookups.
func (r *MongoListingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "product_price", Value: 1}}},
		{Keys: bson.D{{Key: "owner", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo offers indexes: %w", err)
	}
	return nil
}

func (r *MongoListingRepository) Find(ctx context.Context, q *query.Query) ([]models.Listing, error) {
	if q == nil || q.Limit <= 0 {
		return nil, ErrUnboundedQuery
	}

	sort := bson.D{}
	for _, o := range q.Sort {
		dir := 1
		if o.Desc {
			dir = -1
		}
		sort = append(sort, bson.E{Key: o.Field.Name, Value: dir})
	}
	sort = append(sort, bson.E{Key: "created_at", Value: 1})

	opts := options.Find().
		SetSort(sort).
		SetProjection(mongoProjection(q.Projection)).
		SetSkip(int64(q.Skip)).
		SetLimit(int64(q.Limit))

	cur, err := r.col.Find(ctx, mongoFilter(q.Filter), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find listings: %w", err)
	}
	defer cur.Close(ctx)

	listings := []models.Listing{}
	if err := cur.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("mongo decode listings: %w", err)
	}
	return listings, nil
}

func (r *MongoListingRepository) Count(ctx context.Context, filter []query.Criterion) (int64, error) {
	n, err := r.col.CountDocuments(ctx, mongoFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("mongo count listings: %w", err)
	}
	return n, nil
}

func (r *MongoListingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	var listing models.Listing
	if err := r.col.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&listing); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("listing with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("mongo find listing: %w", err)
	}
	return &listing, nil
}

func (r *MongoListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	if listing.ID == "" {
		listing.ID = primitive.NewObjectID().Hex()
	}
	listing.CreatedAt = time.Now()
	listing.UpdatedAt = listing.CreatedAt
	if _, err := r.col.InsertOne(ctx, listing); err != nil {
		return fmt.Errorf("mongo insert listing: %w", err)
	}
	return nil
}

func (r *MongoListingRepository) MarkSold(ctx context.Context, id, buyerID string, price float64) error {
	filter := bson.D{
		{Key: "_id", Value: id},
		{Key: "sold", Value: bson.D{{Key: "$ne", Value: true}}},
		{Key: "product_price", Value: price},
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "sold", Value: true},
			{Key: "sold_to", Value: buyerID},
			{Key: "updated_at", Value: time.Now()},
		}},
		{Key: "$inc", Value: bson.D{{Key: "__v", Value: 1}}},
	}

	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongo mark listing %s sold: %w", id, err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("listing with ID %s: %w", id, ErrListingUnavailable)
	}
	return nil
}

func mongoFilter(filter []query.Criterion) bson.D {
	out := bson.D{}
	for _, c := range filter {
		op, ok := mongoOps[c.Op]
		if !ok {
			continue
		}
		out = append(out, bson.E{Key: c.Field.Name, Value: bson.D{{Key: op, Value: c.Value}}})
	}
	return out
}

// mongoProjection includes the chosen fields, or excludes the hidden ones.
func mongoProjection(p query.Projection) bson.D {
	out := bson.D{}
	if p.Explicit {
		for _, f := range p.Fields {
			out = append(out, bson.E{Key: f.Name, Value: 1})
		}
		return out
	}
	for _, f := range p.Hidden {
		out = append(out, bson.E{Key: f.Name, Value: 0})
	}
	return out
}

package refreshtokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrijs2005/projectstack-auth/internal/common"
	"github.com/dmitrijs2005/projectstack-auth/internal/server/models"
)

const refreshTokenCollection = "refresh_tokens"

type refreshTokenDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Token     string        `bson:"token"`
	UserID    string        `bson:"user_id"`
	ExpiresAt time.Time     `bson:"expires_at"`
}

func (d refreshTokenDocument) toModel() models.RefreshToken {
	return models.RestoreRefreshToken(d.ID.Hex(), d.Token, d.UserID, d.ExpiresAt)
}

type MongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(refreshTokenCollection)}
}

// EnsureIndexes creates the unique token index, the user index and a TTL
// index that lets the server drop tokens once they expire.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("%w: create refresh token indexes: %w", common.ErrorInternal, err)
	}
	return nil
}

func (r *MongoRepository) FindByToken(ctx context.Context, token string) (models.RefreshToken, error) {
	var doc refreshTokenDocument
	if err := r.coll.FindOne(ctx, bson.M{"token": token}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.RefreshToken{}, common.ErrorNotFound
		}
		return models.RefreshToken{}, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) Save(ctx context.Context, t models.RefreshToken) (models.RefreshToken, error) {
	doc := refreshTokenDocument{Token: t.Token(), UserID: t.UserID(), ExpiresAt: t.ExpiresAt()}

	result, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.RefreshToken{}, fmt.Errorf("%w: token", common.ErrConflict)
		}
		return models.RefreshToken{}, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	objectID, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return models.RefreshToken{}, errors.New("failed to convert inserted ID to ObjectID")
	}
	doc.ID = objectID
	return doc.toModel(), nil
}

func (r *MongoRepository) DeleteByToken(ctx context.Context, token string) error {
	if _, err := r.coll.DeleteOne(ctx, bson.M{"token": token}); err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return nil
}

func (r *MongoRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return result.DeletedCount, nil
}

func (r *MongoRepository) Delete(ctx context.Context, t models.RefreshToken) error {
	objectID, err := bson.ObjectIDFromHex(t.ID())
	if err != nil {
		return r.DeleteByToken(ctx, t.Token())
	}
	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": objectID}); err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return nil
}

func (r *MongoRepository) Consume(ctx context.Context, token string) (models.RefreshToken, error) {
	var doc refreshTokenDocument
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"token": token}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.RefreshToken{}, common.ErrorNotFound
		}
		return models.RefreshToken{}, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return doc.toModel(), nil
}

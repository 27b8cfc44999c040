package users

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

const userCollection = "users"

// userDocument is the BSON shape of a user.
type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password_hash"`
	Name         string        `bson:"name"`
	Phone        *string       `bson:"phone,omitempty"`
	Avatar       *string       `bson:"avatar,omitempty"`
	Roles        []string      `bson:"roles"`
	Verified     bool          `bson:"verified"`
	OTP          *string       `bson:"otp,omitempty"`
	OTPExpiresAt *time.Time    `bson:"otp_expires_at,omitempty"`
	CreatedAt    time.Time     `bson:"created_at"`
	UpdatedAt    time.Time     `bson:"updated_at"`
}

func toDocument(u *models.User) (userDocument, error) {
	doc := userDocument{
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Name:         u.Name,
		Phone:        u.Phone,
		Avatar:       u.Avatar,
		Roles:        models.NormalizeRoles(u.Roles),
		Verified:     u.Verified,
		OTP:          u.OTP,
		OTPExpiresAt: u.OTPExpiresAt,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.ID != "" {
		id, err := bson.ObjectIDFromHex(u.ID)
		if err != nil {
			return userDocument{}, common.ErrorNotFound
		}
		doc.ID = id
	}
	return doc, nil
}

func (d userDocument) toModel() *models.User {
	roles := d.Roles
	if roles == nil {
		roles = []string{}
	}
	return &models.User{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Name:         d.Name,
		Phone:        d.Phone,
		Avatar:       d.Avatar,
		Roles:        roles,
		Verified:     d.Verified,
		OTP:          d.OTP,
		OTPExpiresAt: d.OTPExpiresAt,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(userCollection), now: time.Now}
}

// EnsureIndexes creates the unique email index.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("%w: create user indexes: %w", common.ErrorInternal, err)
	}
	return nil
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return doc.toModel(), nil
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *MongoRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"email": email}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return n > 0, nil
}

func (r *MongoRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	doc, err := toDocument(user)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	doc.UpdatedAt = now

	if doc.ID.IsZero() {
		doc.CreatedAt = now
		result, err := r.coll.InsertOne(ctx, doc)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, fmt.Errorf("%w: email", common.ErrConflict)
			}
			return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
		}
		objectID, ok := result.InsertedID.(bson.ObjectID)
		if !ok {
			return nil, errors.New("failed to convert inserted ID to ObjectID")
		}
		doc.ID = objectID
		return doc.toModel(), nil
	}

	var updated userDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": doc.ID},
		bson.M{"$set": bson.M{
			"email":          doc.Email,
			"password_hash":  doc.PasswordHash,
			"name":           doc.Name,
			"phone":          doc.Phone,
			"avatar":         doc.Avatar,
			"roles":          doc.Roles,
			"verified":       doc.Verified,
			"otp":            doc.OTP,
			"otp_expires_at": doc.OTPExpiresAt,
			"updated_at":     doc.UpdatedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return nil, common.ErrorNotFound
		case mongo.IsDuplicateKeyError(err):
			return nil, fmt.Errorf("%w: email", common.ErrConflict)
		}
		return nil, fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	return updated.toModel(), nil
}

func (r *MongoRepository) update(ctx context.Context, id string, update bson.M) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return common.ErrorNotFound
	}

	result, err := r.coll.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("%w: db error: %w", common.ErrorInternal, err)
	}
	if result.MatchedCount == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *MongoRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		"password_hash": passwordHash,
		"updated_at":    r.now().UTC(),
	}})
}

func (r *MongoRepository) SetPendingOTP(ctx context.Context, id string, code string, expiresAt time.Time) error {
	return r.update(ctx, id, bson.M{"$set": bson.M{
		"otp":            code,
		"otp_expires_at": expiresAt,
		"updated_at":     r.now().UTC(),
	}})
}

func (r *MongoRepository) MarkVerified(ctx context.Context, id string) error {
	return r.update(ctx, id, bson.M{
		"$set":   bson.M{"verified": true, "updated_at": r.now().UTC()},
		"$unset": bson.M{"otp": "", "otp_expires_at": ""},
	})
}

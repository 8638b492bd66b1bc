package user

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"relay_chat/internal/errs"
	"relay_chat/internal/model"
)

type (
	UserRepo struct {
		collection *mongo.Collection
	}
)

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{
		collection: db.Collection("users"),
	}
}

func (r *UserRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *UserRepo) GetByName(ctx context.Context, name string) (*model.User, error) {
	filter := bson.M{
		"name": name,
	}

	var user model.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) (primitive.ObjectID, error) {
	res, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}

	id := res.InsertedID.(primitive.ObjectID)
	user.ID = id
	return id, nil
}

// Register creates an account with a bcrypt hash of password. A zero ttl
// never expires.
func (r *UserRepo) Register(ctx context.Context, name, password string, ttl time.Duration) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &model.User{
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if ttl > 0 {
		user.ExpiresAt = now.Add(ttl)
	}
	if _, err := r.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks name and password and returns
// errs.ErrNotAuthenticated or errs.ErrAccountExpired on failure.
func (r *UserRepo) Authenticate(ctx context.Context, name, password string) (*model.User, error) {
	user, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return user, CheckPassword(user, password, time.Now())
}

func CheckPassword(user *model.User, password string, now time.Time) error {
	if user == nil {
		return errs.ErrNotAuthenticated
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errs.ErrNotAuthenticated
		}
		return err
	}
	if user.Expired(now) {
		return errs.ErrAccountExpired
	}
	return nil
}

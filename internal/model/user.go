package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	// User is a relay account. Clients authenticate with Name and the
	// password whose bcrypt hash is PasswordHash.
	User struct {
		ID           primitive.ObjectID `bson:"_id,omitempty"`
		Name         string             `bson:"name"`
		PasswordHash []byte             `bson:"password_hash"`
		ExpiresAt    time.Time          `bson:"expires_at,omitempty"`
		CreatedAt    time.Time          `bson:"created_at"`
	}
)

func (u *User) Expired(now time.Time) bool {
	return !u.ExpiresAt.IsZero() && now.After(u.ExpiresAt)
}

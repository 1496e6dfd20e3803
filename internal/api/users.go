package api

import (
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is an API account allowed to authenticate.
type User struct {
	UserID         uuid.UUID
	Username       string
	HashedPassword string
	Email          string
	Role           string
}

// Demo user table. Passwords are bcrypt hashes (both "admin"); generate new
// ones with cmd/hashpw. A deployment would back this with a directory
// service.
var mockUsers = map[string]User{
	"admin": {
		UserID:         uuid.MustParse("850e8400-e29b-41d4-a716-446655440000"),
		Username:       "admin",
		HashedPassword: "$2b$12$2d/PSQeAC16Gfjq2tCXp/OJxTGwuWP.WV9YzcFQ8rVG9pdjGsbe5O",
		Email:          "admin@example.com",
		Role:           "ADMIN",
	},
	"provider1": {
		UserID:         uuid.MustParse("850e8400-e29b-41d4-a716-446655440001"),
		Username:       "provider1",
		HashedPassword: "$2b$12$2d/PSQeAC16Gfjq2tCXp/OJxTGwuWP.WV9YzcFQ8rVG9pdjGsbe5O",
		Email:          "provider1@example.com",
		Role:           "USER",
	},
}

// verifyUser checks username/password against the user table. The returned
// bool is false for unknown users and wrong passwords alike; callers must
// not distinguish the two in responses.
func verifyUser(username, password string) (User, bool) {
	u, ok := mockUsers[username]
	if !ok {
		return User{}, false
	}
	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) != nil {
		return User{}, false
	}
	return u, true
}

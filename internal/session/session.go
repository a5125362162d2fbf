package session

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uptrace/bun"
)

// Session is the ambient identity every screen needs: who is signed in and
// which cart is theirs. It replaces the clients' localStorage/DataStore
// globals with an explicit object handed to the cart, ticket and checkout
// modules at construction time.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    int64     `bun:"user_id" json:"usuarioId"`
	CartID    int64     `bun:"cart_id" json:"carritoId"`
	Email     string    `bun:"email" json:"email"`
	Token     string    `bun:"token" json:"-"`
	CreatedAt time.Time `bun:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at" json:"updatedAt"`
}

// LoggedOut is the explicit signed-out variant; callers branch on it instead
// of null-checking an ambient global.
var LoggedOut = Session{}

func (s Session) IsLoggedOut() bool {
	return s.UserID == 0
}

// UserIDFromToken pulls the user id out of the auth token's subject claim.
// The token is parsed, not verified - signature checking belongs to the
// backend that issued it.
func UserIDFromToken(tokenString string) (int64, error) {
	if tokenString == "" {
		return 0, errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return 0, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return 0, errors.New("subject claim not found in token")
	}

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("subject claim %q is not a user id: %w", sub, err)
	}
	return userID, nil
}

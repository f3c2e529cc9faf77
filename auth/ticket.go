package auth

import (
	"fmt"

	"github.com/aperoland/aperoland-chat/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
)

const defaultRole = "user"

// ticketClaims are the claims of the session ticket the web application stores in a cookie after login.
// idUser is numeric in tickets issued by the web application.
type ticketClaims struct {
	IdUser   string `mapstructure:"idUser"`
	Username string `mapstructure:"username"`
	Role     string `mapstructure:"role"`
}

// VerifyTicket checks the signature (HS256 with secret) and expiry of a session ticket and returns its user.
func VerifyTicket(ticket, secret string) (*types.User, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: no ticket secret configured", ErrUnauthenticated)
	}
	token, err := jwt.Parse(ticket, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}
	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims", ErrUnauthenticated)
	}
	claims := ticketClaims{}
	err = mapstructure.WeakDecode(map[string]interface{}(mapClaims), &claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnauthenticated, err)
	}
	if claims.IdUser == "" || claims.Username == "" {
		return nil, fmt.Errorf("%w: ticket without idUser or username", ErrUnauthenticated)
	}
	if claims.Role == "" {
		claims.Role = defaultRole
	}
	return &types.User{
		Id:            claims.IdUser,
		Username:      claims.Username,
		Role:          claims.Role,
		Authenticated: true,
	}, nil
}

package auth

import (
	"errors"
	"net/http"

	"github.com/aperoland/aperoland-chat/config"
	"github.com/aperoland/aperoland-chat/globals"
	"github.com/aperoland/aperoland-chat/types"
	"github.com/folkengine/goname"
)

// ErrUnauthenticated is returned when a request carries no acceptable identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identify resolves the identity of an HTTP request: the session ticket cookie first, then an OIDC ID token in the
// "id_token" and "provider" query parameters. Without either, a guest is returned if guests are allowed.
func Identify(r *http.Request, cfg *config.Config) (*types.User, error) {
	if cookie, err := r.Cookie(cfg.AuthConfig.CookieName); err == nil && cookie.Value != "" && cfg.AuthConfig.JWTSecret != "" {
		user, err := VerifyTicket(cookie.Value, cfg.AuthConfig.JWTSecret)
		if err != nil {
			globals.AppLogger.Debug("invalid session ticket", "error", err)
			return nil, err
		}
		return user, nil
	}
	vals := r.URL.Query()
	if idToken := vals.Get("id_token"); idToken != "" {
		user, err := Authenticate(r.Context(), idToken, vals.Get("provider"), cfg)
		if err != nil {
			globals.AppLogger.Debug("invalid id token", "error", err)
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}
	if !cfg.AuthConfig.AllowGuests {
		return nil, ErrUnauthenticated
	}
	return NewGuest(), nil
}

// NewGuest returns an unauthenticated user with a generated name.
func NewGuest() *types.User {
	nick := goname.New(goname.FantasyMap).FirstLast() + " (guest)"
	return &types.User{
		Id:       nick,
		Username: nick,
		Role:     "guest",
	}
}

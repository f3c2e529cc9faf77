package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aperoland/aperoland-chat/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func signTicket(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	ticket, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return ticket
}

func TestVerifyTicket(t *testing.T) {
	ticket := signTicket(t, jwt.MapClaims{
		"idUser":   17,
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	user, err := VerifyTicket(ticket, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "17", user.Id)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "user", user.Role)
	assert.True(t, user.Authenticated)
}

func TestVerifyTicketRejects(t *testing.T) {
	valid := jwt.MapClaims{"idUser": 17, "username": "alice", "role": "admin"}
	tests := []struct {
		name   string
		ticket string
		secret string
	}{
		{"wrong secret", signTicket(t, valid, "other"), testSecret},
		{"no secret configured", signTicket(t, valid, testSecret), ""},
		{"expired", signTicket(t, jwt.MapClaims{"idUser": 17, "username": "alice", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret), testSecret},
		{"no username", signTicket(t, jwt.MapClaims{"idUser": 17}, testSecret), testSecret},
		{"garbage", "not.a.ticket", testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyTicket(tt.ticket, tt.secret)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}
}

func TestVerifyTicketRejectsOtherAlgorithms(t *testing.T) {
	ticket, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"idUser": 1, "username": "eve"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = VerifyTicket(ticket, testSecret)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func testConfig(allowGuests bool) *config.Config {
	return &config.Config{AuthConfig: config.AuthConfig{
		JWTSecret:   testSecret,
		CookieName:  "aperolandTicket",
		AllowGuests: allowGuests,
	}}
}

func TestIdentify(t *testing.T) {
	ticket := signTicket(t, jwt.MapClaims{"idUser": "3", "username": "bob", "role": "admin"}, testSecret)

	r := httptest.NewRequest(http.MethodGet, "/chat", nil)
	r.AddCookie(&http.Cookie{Name: "aperolandTicket", Value: ticket})
	user, err := Identify(r, testConfig(false))
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)
	assert.Equal(t, "admin", user.Role)

	r = httptest.NewRequest(http.MethodGet, "/chat", nil)
	r.AddCookie(&http.Cookie{Name: "aperolandTicket", Value: signTicket(t, jwt.MapClaims{"idUser": "3", "username": "bob"}, "forged")})
	_, err = Identify(r, testConfig(true))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestIdentifyGuests(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/chat", nil)
	_, err := Identify(r, testConfig(false))
	assert.ErrorIs(t, err, ErrUnauthenticated)

	user, err := Identify(r, testConfig(true))
	require.NoError(t, err)
	assert.False(t, user.Authenticated)
	assert.True(t, strings.HasSuffix(user.Username, " (guest)"))
	assert.Equal(t, "guest", user.Role)

	// an id token for an unconfigured provider falls back to a guest
	r = httptest.NewRequest(http.MethodGet, "/chat?id_token=abc&provider=nowhere", nil)
	user, err = Identify(r, testConfig(true))
	require.NoError(t, err)
	assert.False(t, user.Authenticated)
}

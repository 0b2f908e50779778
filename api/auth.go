package api

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 24 * time.Hour

// Identity is the authenticated caller attached to a request. Legacy marks
// identities resolved from the static shared secret rather than a session
// token.
type Identity struct {
	UserID   int64
	Username string
	Email    string
	Legacy   bool
}

// Authenticator resolves the caller identity from an Authorization header.
// The credential scheme is fixed by configuration, never inferred from the
// token contents.
type Authenticator interface {
	IdentityFromAuthHeader(header string) (Identity, error)
}

// SessionAuth issues and verifies signed, expiring session tokens that embed
// the user identity.
type SessionAuth struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewSessionAuth creates a SessionAuth signing with the given secret.
func NewSessionAuth(secret []byte, ttl time.Duration) *SessionAuth {
	if len(secret) == 0 {
		panic("api.NewSessionAuth: empty signing secret")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionAuth{
		secret: secret,
		ttl:    ttl,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
}

// IssueToken signs a session token embedding the user's id, username and
// email.
func (a *SessionAuth) IssueToken(u domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatInt(u.ID, 10),
		"username": u.Username,
		"email":    u.Email,
		"iat":      now.Unix(),
		"exp":      now.Add(a.ttl).Unix(),
		"jti":      uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// IdentityFromAuthHeader verifies the bearer token's signature and expiry and
// resolves the embedded identity.
func (a *SessionAuth) IdentityFromAuthHeader(header string) (Identity, error) {
	token, err := bearerToken(header)
	if err != nil {
		return Identity{}, err
	}

	parsed, err := a.parser.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}

	now := time.Now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return Identity{}, errors.New("token expired")
	}
	if !claims.VerifyIssuedAt(now+int64(time.Minute/time.Second), false) {
		return Identity{}, errors.New("token used before issued")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Identity{}, errors.New("missing sub")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return Identity{}, errors.New("invalid sub")
	}

	ident := Identity{UserID: userID}
	if v, ok := claims["username"].(string); ok {
		ident.Username = v
	}
	if v, ok := claims["email"].(string); ok {
		ident.Email = v
	}
	return ident, nil
}

// SharedSecretAuth accepts a single static credential compared in constant
// time. It carries no per-user identity; every request acts as the one
// configured legacy user.
type SharedSecretAuth struct {
	secret []byte
	userID int64
}

// NewSharedSecretAuth creates a SharedSecretAuth resolving to the given
// legacy user id.
func NewSharedSecretAuth(secret string, userID int64) *SharedSecretAuth {
	if secret == "" {
		panic("api.NewSharedSecretAuth: empty shared secret")
	}
	return &SharedSecretAuth{secret: []byte(secret), userID: userID}
}

func (a *SharedSecretAuth) IdentityFromAuthHeader(header string) (Identity, error) {
	token, err := bearerToken(header)
	if err != nil {
		return Identity{}, err
	}
	if subtle.ConstantTimeCompare([]byte(token), a.secret) != 1 {
		return Identity{}, errors.New("secret mismatch")
	}
	return Identity{UserID: a.userID, Legacy: true}, nil
}

const identityContextKey = "auth.identity"

// RequireAuth rejects requests without a valid credential and attaches the
// resolved identity to the request context. The response never reveals which
// check failed; the reason is only logged at debug level.
func RequireAuth(auth Authenticator, logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				logger.WithFields(log.Fields{
					"request_id": requestID(c),
					"reason":     err.Error(),
				}).Debug("authentication rejected")
				return authError(c)
			}
			c.Set(identityContextKey, ident)
			return next(c)
		}
	}
}

func identityFrom(c echo.Context) (Identity, bool) {
	ident, ok := c.Get(identityContextKey).(Identity)
	return ident, ok
}

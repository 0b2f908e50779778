package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskboard-api/domain"
	"taskboard-api/storage"
)

func registerUser(store Storage, sessions *SessionAuth, bcryptCost int, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var req registerRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}

		var v violations
		username := validateUsername(req.Username, &v)
		email := validateEmail(req.Email, &v)
		validatePassword(req.Password, &v)
		if len(v) > 0 {
			return validationError(c, v)
		}

		if _, err := store.UserByUsername(ctx, username); err == nil {
			return conflictError(c, "username already taken")
		} else if !errors.Is(err, storage.ErrNotFound) {
			return serverError(c, logger, err)
		}
		if _, err := store.UserByEmail(ctx, email); err == nil {
			return conflictError(c, "email already registered")
		} else if !errors.Is(err, storage.ErrNotFound) {
			return serverError(c, logger, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
		if err != nil {
			return serverError(c, logger, err)
		}

		user, err := store.CreateUser(ctx, domain.User{
			Username:     username,
			Email:        email,
			PasswordHash: string(hash),
		})
		if err != nil {
			// A concurrent registration can win the race between the
			// duplicate checks above and the insert.
			if errors.Is(err, storage.ErrDuplicate) {
				return conflictError(c, "username or email already registered")
			}
			return serverError(c, logger, err)
		}

		token, err := sessions.IssueToken(user)
		if err != nil {
			return serverError(c, logger, err)
		}

		logger.WithFields(log.Fields{
			"request_id": requestID(c),
			"user_id":    user.ID,
		}).Info("user registered")

		return c.JSON(http.StatusCreated, authResponse{User: user, Token: token})
	}
}

func loginUser(store Storage, sessions *SessionAuth, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		var req loginRequest
		if err := decodeBody(c, &req, false); err != nil {
			return validationError(c, []string{"request body must be valid JSON"})
		}

		var v violations
		if req.Email == "" {
			v.add("email is required")
		}
		if req.Password == "" {
			v.add("password is required")
		}
		if len(v) > 0 {
			return validationError(c, v)
		}

		// Unknown email and wrong password produce the same response so the
		// two cases cannot be told apart.
		user, err := store.UserByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return authError(c)
			}
			return serverError(c, logger, err)
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			return authError(c)
		}

		token, err := sessions.IssueToken(user)
		if err != nil {
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, authResponse{User: user, Token: token})
	}
}

func currentUser(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, ok := identityFrom(c)
		if !ok {
			return authError(c)
		}
		user, err := store.UserByID(c.Request().Context(), ident.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return notFoundError(c, "user")
			}
			return serverError(c, logger, err)
		}
		return c.JSON(http.StatusOK, userResponse{User: user})
	}
}

package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/protocol"
	"github.com/piezasparawebsite/blogchain-js-blockchain/internal/storage"
)

const (
	maxUsernameLength = 64
	maxPasswordBytes  = 72
)

// Register creates an account holding a bcrypt hash of password.
func (s *BlogService) Register(ctx context.Context, username, password string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if len(password) < s.minPasswordLength {
		return BadRequest("password is too short", nil)
	}
	if len(password) > maxPasswordBytes {
		return BadRequest("password must be at most 72 bytes", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return Internal("hash password", err)
	}
	err = s.accounts.CreateAccount(ctx, storage.Account{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, storage.ErrAccountExists) {
		return NewAppError(http.StatusConflict, "ACCOUNT_EXISTS", "username already taken", false, err)
	}
	if err != nil {
		return NewAppError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "account storage unavailable", true, err)
	}
	return nil
}

// Authenticate reports whether password matches the stored hash for username.
// Unknown users are checked against a dummy hash so both paths cost the same.
func (s *BlogService) Authenticate(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	acct, found, err := s.accounts.GetAccount(ctx, username)
	if err != nil {
		return false, NewAppError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "account storage unavailable", true, err)
	}
	hash := s.dummyHash
	if found {
		hash = []byte(acct.PasswordHash)
	}
	match := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
	return found && match, nil
}

// Auth dispatches a login or registration request.
func (s *BlogService) Auth(ctx context.Context, req protocol.AuthRequest) (protocol.AuthResponse, error) {
	switch req.Mode {
	case protocol.AuthModeRegister:
		if err := s.Register(ctx, req.Username, req.Password); err != nil {
			return protocol.AuthResponse{}, err
		}
	case protocol.AuthModeLogin, "":
		ok, err := s.Authenticate(ctx, req.Username, req.Password)
		if err != nil {
			return protocol.AuthResponse{}, err
		}
		if !ok {
			return protocol.AuthResponse{}, NewAppError(http.StatusUnauthorized, "UNAUTHORIZED", "invalid username or password", false, nil)
		}
		req.Mode = protocol.AuthModeLogin
	default:
		return protocol.AuthResponse{}, BadRequest("mode must be one of login|register", nil)
	}
	return protocol.AuthResponse{OK: true, Username: req.Username, Mode: req.Mode}, nil
}

func validateUsername(username string) error {
	if strings.TrimSpace(username) != username || username == "" {
		return BadRequest("username must be non-empty without surrounding spaces", nil)
	}
	if len(username) > maxUsernameLength {
		return BadRequest("username is too long", nil)
	}
	if strings.EqualFold(username, protocol.GenesisAuthor) {
		return BadRequest("username is reserved", nil)
	}
	for _, r := range username {
		if unicode.IsControl(r) {
			return BadRequest("username contains control characters", nil)
		}
	}
	return nil
}

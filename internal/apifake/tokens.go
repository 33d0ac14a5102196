package apifake

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accessLifetime  = 5 * time.Minute
	refreshLifetime = 24 * time.Hour
)

type user struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	DateJoined   time.Time
	Bio          *string
	Company      *string
	Phone        *string
}

func (u *user) summary() map[string]any {
	return map[string]any{"id": u.ID, "username": u.Username, "email": u.Email}
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return string(b), err
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// sign mints a JWT shaped like the service's credentials.
func (s *Server) sign(userID int64, tokenType string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"token_type": tokenType,
		"user_id":    userID,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(lifetime).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("[apifake sign] %w", err)
	}
	return signed, nil
}

// issuePair creates and registers a fresh access/refresh pair. Must be called
// with mu held.
func (s *Server) issuePair(userID int64) (access, refresh string, err error) {
	if access, err = s.sign(userID, "access", accessLifetime); err != nil {
		return "", "", err
	}
	if refresh, err = s.sign(userID, "refresh", refreshLifetime); err != nil {
		return "", "", err
	}
	s.access[access] = userID
	s.refresh[refresh] = userID
	return access, refresh, nil
}

func (s *Server) verify(token, wantType string) bool {
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return false
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	return ok && claims["token_type"] == wantType
}

func (s *Server) validAccess(token string) (int64, bool) {
	if !s.verify(token, "access") {
		return 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.access[token]
	return id, ok
}

// AddUser registers an account directly, bypassing signup/.
func (s *Server) AddUser(username, email, password string) (int64, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return 0, fmt.Errorf("[apifake AddUser] %s already exists", username)
	}
	s.nextUserID++
	s.users[username] = &user{
		ID:           s.nextUserID,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		DateJoined:   time.Now().UTC(),
	}
	return s.nextUserID, nil
}

// Issue mints a valid credential pair for an existing user, as if they had
// logged in earlier.
func (s *Server) Issue(username string) (access, refresh string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return "", "", fmt.Errorf("[apifake Issue] unknown user %s", username)
	}
	return s.issuePair(u.ID)
}

func (s *Server) userByID(id int64) *user {
	for _, u := range s.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

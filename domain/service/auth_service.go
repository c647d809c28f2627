package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/port/inbound"
	"github.com/ajkula/dirmon/domain/port/outbound"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

// AdminCredentials is the single account allowed to use the API
type AdminCredentials struct {
	Username     string
	PasswordHash string
	Salt         [16]byte
}

type authService struct {
	admin     AdminCredentials
	crypto    outbound.CryptoService
	logger    outbound.Logger
	jwtSecret string
	jwtExpiry time.Duration

	mu sync.Mutex
	// tokens issued before this instant are rejected
	validSince time.Time
	lastLogin  time.Time
	now        func() time.Time
}

func NewAuthService(
	admin AdminCredentials,
	crypto outbound.CryptoService,
	logger outbound.Logger,
	jwtSecret string,
	jwtExpiryMinutes int,
) inbound.AuthService {
	return &authService{
		admin:     admin,
		crypto:    crypto,
		logger:    logger,
		jwtSecret: jwtSecret,
		jwtExpiry: time.Duration(jwtExpiryMinutes) * time.Minute,
		now:       time.Now,
	}
}

func (s *authService) Login(username, password string) (*model.User, string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	// always hash so a wrong username costs the same as a wrong password
	passOK := s.crypto.VerifyPassword(password, s.admin.PasswordHash, s.admin.Salt)
	if !userOK || !passOK {
		s.logger.Warn("Failed login attempt", "username", username)
		return nil, "", ErrInvalidCredentials
	}

	now := s.now().Truncate(time.Second)

	s.mu.Lock()
	// a login right after Logout is stamped with the first valid second
	if now.Before(s.validSince) {
		now = s.validSince
	}
	s.lastLogin = now
	s.mu.Unlock()

	user := s.user(now)
	token, err := s.generateToken(user, now)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("Admin logged in", "username", username)
	return user, token, nil
}

func (s *authService) ValidateToken(tokenString string) (*model.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	username, ok := claims["username"].(string)
	if !ok || username != s.admin.Username {
		return nil, ErrInvalidToken
	}

	iatFloat, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}
	issuedAt := time.Unix(int64(iatFloat), 0)

	s.mu.Lock()
	validSince, lastLogin := s.validSince, s.lastLogin
	s.mu.Unlock()

	if issuedAt.Before(validSince) {
		return nil, ErrInvalidToken
	}

	return s.user(lastLogin), nil
}

func (s *authService) Logout(username string) error {
	if username != s.admin.Username {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	// iat has second precision, so the next second is the first valid one
	s.validSince = s.now().Truncate(time.Second).Add(time.Second)
	s.mu.Unlock()

	s.logger.Info("Admin tokens revoked", "username", username)
	return nil
}

func (s *authService) user(lastLogin time.Time) *model.User {
	return &model.User{
		Username:  s.admin.Username,
		Role:      model.RoleAdmin,
		LastLogin: lastLogin,
	}
}

func (s *authService) generateToken(user *model.User, issuedAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"username": user.Username,
		"role":     user.Role,
		"exp":      issuedAt.Add(s.jwtExpiry).Unix(),
		"iat":      issuedAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/notisync/notisync/internal/models"
	"github.com/notisync/notisync/internal/repositories"
	"github.com/notisync/notisync/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidToken       = errors.New("invalid token")
)

type AuthService struct {
	userRepo    repositories.UserRepository
	deviceRepo  repositories.DeviceRepository
	sessionRepo repositories.SessionRepository
	jwtSecret   string
	jwtExpiry   time.Duration
}

type LoginRequest struct {
	Email      string
	Password   string
	DeviceID   *uuid.UUID // nil means register a new device
	DeviceName string
	Platform   string
	PushToken  *string
}

type LoginResponse struct {
	Token     string
	ExpiresAt time.Time
	DeviceID  uuid.UUID
	UserID    uuid.UUID
}

type TokenClaims struct {
	UserID    uuid.UUID
	DeviceID  uuid.UUID
	SessionID string
}

func NewAuthService(
	userRepo repositories.UserRepository,
	deviceRepo repositories.DeviceRepository,
	sessionRepo repositories.SessionRepository,
	jwtSecret string,
	jwtExpiry time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:    userRepo,
		deviceRepo:  deviceRepo,
		sessionRepo: sessionRepo,
		jwtSecret:   jwtSecret,
		jwtExpiry:   jwtExpiry,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) error {
	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil && existing != nil {
		return ErrEmailExists
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("failed to check email: %w", err)
	}

	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}

	var device *models.Device
	if req.DeviceID != nil {
		device, err = s.deviceRepo.GetByID(ctx, *req.DeviceID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errors.New("device not found")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get device: %w", err)
		}
		if device.UserID != user.ID {
			return nil, errors.New("device does not belong to user")
		}
		if req.PushToken != nil {
			if err := s.deviceRepo.SetPushToken(ctx, device.ID, req.PushToken); err != nil {
				return nil, fmt.Errorf("failed to update push token: %w", err)
			}
		}
	} else {
		device = &models.Device{
			UserID:    user.ID,
			Name:      req.DeviceName,
			Platform:  req.Platform,
			PushToken: req.PushToken,
		}
		if err := s.deviceRepo.Create(ctx, device); err != nil {
			return nil, fmt.Errorf("failed to create device: %w", err)
		}
	}

	sessionID := uuid.New().String()
	expiresAt := time.Now().Add(s.jwtExpiry)
	session := &models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		DeviceID:  device.ID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.generateToken(user.ID, device.ID, sessionID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  device.ID,
		UserID:    user.ID,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Delete(ctx, sessionID)
}

// ValidateToken parses the JWT and checks the session is still live in Redis,
// so revoked sessions die before the token expires.
func (s *AuthService) ValidateToken(ctx context.Context, tokenStr string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claimString(claims, "user_id"))
	if err != nil {
		return nil, ErrInvalidToken
	}
	deviceID, err := uuid.Parse(claimString(claims, "device_id"))
	if err != nil {
		return nil, ErrInvalidToken
	}
	sessionID := claimString(claims, "session_id")
	if sessionID == "" {
		return nil, ErrInvalidToken
	}

	if _, err := s.sessionRepo.GetByID(ctx, sessionID); err != nil {
		return nil, ErrInvalidToken
	}

	return &TokenClaims{
		UserID:    userID,
		DeviceID:  deviceID,
		SessionID: sessionID,
	}, nil
}

func (s *AuthService) generateToken(userID, deviceID uuid.UUID, sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id":    userID.String(),
		"device_id":  deviceID.String(),
		"session_id": sessionID,
		"exp":        expiresAt.Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func claimString(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"marketplace/internal/cache"
	"marketplace/internal/config"
	"marketplace/internal/models"
	"marketplace/internal/observability"
	"marketplace/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "marketplace-api"
	tokenAudience = "marketplace-client"

	DefaultOTPTTL     = 10 * time.Minute
	DefaultSessionTTL = 72 * time.Hour
)

// CodeSender delivers a one-time sign-in code to an email address.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// LogCodeSender writes codes to the log. It stands in for a mail provider
// in development.
type LogCodeSender struct{}

func (LogCodeSender) SendCode(ctx context.Context, email, code string) error {
	observability.GlobalLogger.InfoContext(ctx, "sign-in code issued",
		slog.String("email", email), slog.String("code", code))
	return nil
}

// SessionClaims are the JWT claims of a session token.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService implements passwordless sign-in: an emailed one-time code is
// exchanged for a signed session token.
type AuthService struct {
	store      cache.Store
	users      repository.UserRepository
	sender     CodeSender
	secret     []byte
	otpTTL     time.Duration
	sessionTTL time.Duration
	bcryptCost int
	now        func() time.Time
	newCode    func() (string, error)
}

// NewAuthService wires the auth service. A nil sender logs codes.
func NewAuthService(store cache.Store, users repository.UserRepository, sender CodeSender, cfg *config.Config) *AuthService {
	if sender == nil {
		sender = LogCodeSender{}
	}
	s := &AuthService{
		store:      store,
		users:      users,
		sender:     sender,
		otpTTL:     DefaultOTPTTL,
		sessionTTL: DefaultSessionTTL,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		newCode:    randomCode,
	}
	if cfg != nil {
		s.secret = []byte(cfg.JWTSecret)
		if cfg.OTPTTLMinutes > 0 {
			s.otpTTL = cfg.OTPTTL()
		}
		if cfg.SessionTTLHours > 0 {
			s.sessionTTL = cfg.SessionTTL()
		}
	}
	return s
}

// SignInWithOTP issues a fresh code for email, replacing any earlier one.
func (s *AuthService) SignInWithOTP(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return models.NewInternalError(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.store.Set(ctx, cache.OTPKey(email), string(hash), s.otpTTL); err != nil {
		return models.NewTransientIOError("Failed to issue sign-in code", err)
	}
	if err := s.sender.SendCode(ctx, email, code); err != nil {
		return models.NewTransientIOError("Failed to send sign-in code", err)
	}
	return nil
}

// VerifyOTP checks code for email and returns a session token. The code is
// single use. The user is created on first sign-in.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (string, *models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil, err
	}

	key := cache.OTPKey(email)
	hash, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", nil, models.NewTransientIOError("Failed to verify sign-in code", err)
	}
	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimSpace(code))) != nil {
		return "", nil, models.NewUnauthorizedError("Invalid or expired code")
	}
	// Only the caller that removes this exact hash may sign in.
	taken, ok, err := s.store.Take(ctx, key)
	if err != nil {
		return "", nil, models.NewTransientIOError("Failed to verify sign-in code", err)
	}
	if !ok || taken != hash {
		return "", nil, models.NewUnauthorizedError("Invalid or expired code")
	}

	user, err := s.users.GetOrCreateByEmail(ctx, email)
	if err != nil {
		return "", nil, models.NewTransientIOError("Failed to load account", err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, models.NewInternalError(err)
	}
	return token, user, nil
}

// GetSession resolves a token to its session. Revoked, expired or malformed
// tokens are unauthorized.
func (s *AuthService) GetSession(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	_, revoked, err := s.store.Get(ctx, cache.RevokedTokenKey(claims.ID))
	if err != nil {
		return nil, models.NewTransientIOError("Failed to check session", err)
	}
	if revoked {
		return nil, models.NewUnauthorizedError("Session has ended")
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Unknown user")
		}
		return nil, models.NewTransientIOError("Failed to load account", err)
	}

	return &models.Session{
		User:      *user,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// GetUser returns the user behind token.
func (s *AuthService) GetUser(ctx context.Context, token string) (*models.User, error) {
	sess, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	return &sess.User, nil
}

// SignOut revokes token until it would have expired anyway. Signing out an
// invalid token is a no-op.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.store.Set(ctx, cache.RevokedTokenKey(claims.ID), "1", ttl); err != nil {
		return models.NewTransientIOError("Failed to end session", err)
	}
	return nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("JWT secret not configured")
	}
	now := s.now()
	claims := SessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *AuthService) parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}
	return claims, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", models.NewValidationError("A valid email address is required")
	}
	return strings.ToLower(addr.Address), nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

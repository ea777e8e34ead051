package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	redis "github.com/redis/go-redis/v9"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/obs"
	"github.com/awibowo/backend-storefront/internal/store"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultResetTTL   = time.Hour
	defaultOTPTTL     = 5 * time.Minute
	maxOTPAttempts    = 5
)

// UserStore is the account persistence surface the service needs.
type UserStore interface {
	Create(ctx context.Context, id, email, passwordHash, fullName string) (store.User, error)
	GetByEmail(ctx context.Context, email string) (store.User, error)
	GetByID(ctx context.Context, id string) (store.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// SessionStore is the refresh session persistence surface the service needs.
type SessionStore interface {
	Create(ctx context.Context, id, userID, refreshHash, userAgent, ip string, expiresAt time.Time) (store.Session, error)
	GetActiveByHash(ctx context.Context, refreshHash string) (store.Session, error)
	Revoke(ctx context.Context, refreshHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Notifier dispatches authentication email, typically by queueing tasks.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
	SendPasswordReset(ctx context.Context, email, link string) error
}

// Service coordinates authentication, OTP login, password management and
// session persistence. One-time codes and reset tokens live in Redis under
// their hash with the configured TTL.
type Service struct {
	users      UserStore
	sessions   SessionStore
	redis      *redis.Client
	notifier   Notifier
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	otpTTL     time.Duration
	baseURL    string
	now        func() time.Time
	signer     jwa.SignatureAlgorithm
	validator  TokenValidator
	issuer     string
	audience   string
}

// Config configures the auth service.
type Config struct {
	Users           UserStore
	Sessions        SessionStore
	Redis           *redis.Client
	Notifier        Notifier
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetTokenTTL   time.Duration
	OTPTTL          time.Duration
	Issuer          string
	Audience        string
	ClockSkew       time.Duration
	PublicBaseURL   string
}

// User is the safe subset of the account model returned to clients.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair bundles the material returned after login or refresh.
type TokenPair struct {
	User          User      `json:"user"`
	AccessToken   string    `json:"access_token"`
	RefreshToken  string    `json:"refresh_token"`
	AccessExpiry  time.Time `json:"access_expires_at"`
	RefreshExpiry time.Time `json:"refresh_expires_at"`
}

// NewService constructs a Service with sane defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Users == nil || cfg.Sessions == nil {
		return nil, errors.New("auth: stores are required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	resetTTL := cfg.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	otpTTL := cfg.OTPTTL
	if otpTTL <= 0 {
		otpTTL = defaultOTPTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "backend-storefront"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "storefront-app"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Service{
		users:      cfg.Users,
		sessions:   cfg.Sessions,
		redis:      cfg.Redis,
		notifier:   cfg.Notifier,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   resetTTL,
		otpTTL:     otpTTL,
		baseURL:    strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:        time.Now,
		signer:     jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:   issuer,
		audience: audience,
	}, nil
}

// WithNow lets tests override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Register creates a new account with the supplied credentials.
func (s *Service) Register(ctx context.Context, fullName, email, password string) (User, error) {
	if strings.TrimSpace(fullName) == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "full_name is required", http.StatusBadRequest, nil)
	}
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" {
		return User{}, common.NewAppError("VALIDATION_ERROR", "email is required", http.StatusBadRequest, nil)
	}
	if len(password) < 8 {
		return User{}, common.NewAppError("VALIDATION_ERROR", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	created, err := s.users.Create(ctx, uuid.NewString(), normalized, hash, strings.TrimSpace(fullName))
	if err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, common.NewAppError("EMAIL_ALREADY_USED", "email is already registered", http.StatusConflict, err)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return toUser(created), nil
}

// Login verifies credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password, userAgent, ip string) (TokenPair, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || password == "" {
		return TokenPair{}, errInvalidCredentials(nil)
	}
	u, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return TokenPair{}, errInvalidCredentials(nil)
	}
	ok, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
	if err != nil || !ok {
		return TokenPair{}, errInvalidCredentials(err)
	}
	return s.issueTokens(ctx, u, userAgent, ip)
}

// RequestOTP issues a one-time login code for an existing account. The
// response is identical whether or not the email exists.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || s.redis == nil {
		return nil
	}
	if _, err := s.users.GetByEmail(ctx, normalized); err != nil {
		return nil
	}
	code, err := generateOTP(6)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.redis.Set(ctx, otpKey(normalized), common.Sha256Hex(code), s.otpTTL).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	_ = s.redis.Del(ctx, otpAttemptsKey(normalized)).Err()
	if obs.OTPIssuedTotal != nil {
		obs.OTPIssuedTotal.Inc()
	}
	if s.notifier != nil {
		if err := s.notifier.SendOTP(ctx, normalized, code); err != nil {
			return fmt.Errorf("send otp: %w", err)
		}
	}
	return nil
}

// VerifyOTP checks a one-time code and issues a token pair. Codes are single
// use and withdrawn after maxOTPAttempts wrong guesses, so a 6-digit code
// cannot be brute-forced within its TTL.
func (s *Service) VerifyOTP(ctx context.Context, email, code, userAgent, ip string) (TokenPair, error) {
	normalized := strings.TrimSpace(strings.ToLower(email))
	code = strings.TrimSpace(code)
	if normalized == "" || code == "" || s.redis == nil {
		return TokenPair{}, errInvalidOTP(nil)
	}
	stored, err := s.redis.Get(ctx, otpKey(normalized)).Result()
	if err != nil {
		return TokenPair{}, errInvalidOTP(err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(common.Sha256Hex(code))) != 1 {
		attempts, aerr := s.redis.Incr(ctx, otpAttemptsKey(normalized)).Result()
		if aerr == nil {
			if attempts == 1 {
				_ = s.redis.Expire(ctx, otpAttemptsKey(normalized), s.otpTTL).Err()
			}
			if attempts >= maxOTPAttempts {
				_ = s.redis.Del(ctx, otpKey(normalized), otpAttemptsKey(normalized)).Err()
			}
		}
		return TokenPair{}, errInvalidOTP(nil)
	}
	u, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return TokenPair{}, errInvalidOTP(err)
	}
	_ = s.redis.Del(ctx, otpKey(normalized), otpAttemptsKey(normalized)).Err()
	return s.issueTokens(ctx, u, userAgent, ip)
}

// Refresh validates and rotates a refresh token.
func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent, ip string) (TokenPair, error) {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return TokenPair{}, errUnauthorized(nil)
	}
	hashed := common.Sha256Hex(token)
	session, err := s.sessions.GetActiveByHash(ctx, hashed)
	if err != nil {
		return TokenPair{}, errUnauthorized(err)
	}
	u, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return TokenPair{}, errUnauthorized(err)
	}
	if err := s.sessions.Revoke(ctx, hashed); err != nil {
		return TokenPair{}, fmt.Errorf("revoke session: %w", err)
	}
	return s.issueTokens(ctx, u, userAgent, ip)
}

// Logout revokes the refresh token. Unknown tokens are a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	token := strings.TrimSpace(refreshToken)
	if token == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, common.Sha256Hex(token))
}

// Me fetches the current authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, errUnauthorized(nil)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return User{}, errUnauthorized(err)
	}
	return toUser(u), nil
}

// InitiatePasswordReset stores a reset token and mails the link. The caller
// cannot learn whether the email exists.
func (s *Service) InitiatePasswordReset(ctx context.Context, email string) error {
	normalized := strings.TrimSpace(strings.ToLower(email))
	if normalized == "" || s.redis == nil {
		return nil
	}
	u, err := s.users.GetByEmail(ctx, normalized)
	if err != nil {
		return nil
	}
	token, err := generateToken(32)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	if err := s.redis.Set(ctx, resetKey(common.Sha256Hex(token)), u.ID, s.resetTTL).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if s.notifier != nil {
		link := fmt.Sprintf("%s/reset?token=%s", s.baseURL, token)
		if err := s.notifier.SendPasswordReset(ctx, u.Email, link); err != nil {
			return fmt.Errorf("send reset email: %w", err)
		}
	}
	return nil
}

// ResetPassword validates the token, updates the password and revokes every
// live session of the user.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" || s.redis == nil {
		return common.NewAppError("INVALID_TOKEN", "invalid or expired token", http.StatusBadRequest, nil)
	}
	if len(newPassword) < 8 {
		return common.NewAppError("WEAK_PASSWORD", "password must be at least 8 characters", http.StatusBadRequest, nil)
	}
	key := resetKey(common.Sha256Hex(trimmed))
	userID, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return common.NewAppError("INVALID_TOKEN", "invalid or expired token", http.StatusBadRequest, err)
	}
	hash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	_ = s.redis.Del(ctx, key).Err()
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

// ParseAccessToken validates an access token and returns the subject and role.
func (s *Service) ParseAccessToken(token string) (userID, role string, err error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return "", "", errUnauthorized(nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return "", "", errUnauthorized(err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return "", "", errUnauthorized(fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret))
	if err != nil {
		return "", "", errUnauthorized(err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return "", "", errUnauthorized(err)
	}
	if v, ok := parsed.Get(roleClaim); ok {
		role, _ = v.(string)
	}
	return parsed.Subject(), role, nil
}

func (s *Service) issueTokens(ctx context.Context, u store.User, userAgent, ip string) (TokenPair, error) {
	accessToken, accessExpiry, err := s.signAccessToken(u.ID, u.Role)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := generateToken(48)
	if err != nil {
		return TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}
	refreshExpiry := s.now().Add(s.refreshTTL)
	if _, err := s.sessions.Create(ctx, uuid.NewString(), u.ID, common.Sha256Hex(refreshToken),
		strings.TrimSpace(userAgent), strings.TrimSpace(ip), refreshExpiry); err != nil {
		return TokenPair{}, fmt.Errorf("create session: %w", err)
	}
	return TokenPair{
		User:          toUser(u),
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExpiry:  accessExpiry,
		RefreshExpiry: refreshExpiry,
	}, nil
}

func (s *Service) signAccessToken(userID, role string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.accessTTL)
	token, err := jwt.NewBuilder().
		Subject(userID).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim(roleClaim, role).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

func toUser(u store.User) User {
	return User{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func generateOTP(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

func otpKey(email string) string         { return "otp:" + email }
func otpAttemptsKey(email string) string { return "otp_attempts:" + email }
func resetKey(hash string) string        { return "pwreset:" + hash }

func errInvalidCredentials(err error) error {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid email or password", http.StatusUnauthorized, err)
}

func errInvalidOTP(err error) error {
	return common.NewAppError("INVALID_OTP", "invalid or expired code", http.StatusUnauthorized, err)
}

func errUnauthorized(err error) error {
	return common.NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, err)
}

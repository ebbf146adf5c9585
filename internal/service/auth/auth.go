package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ovoronin/scribe/internal/apperrors"
	"github.com/ovoronin/scribe/internal/models"
	"github.com/ovoronin/scribe/internal/repository"
	"github.com/ovoronin/scribe/internal/service/auth/tokenmanager"
)

const (
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
)

// Well formed bcrypt hash that matches no password
// Compared against on login with unknown username so the response time
// stays close to the wrong password case
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type Config struct {
	// Hasher to use during registration and login
	// If not set the default bcrypt hasher is used
	Hasher PasswordHasher

	// Cookie and header names used for token transport
	// If not set defaults are used
	AccessCookieName  string
	RefreshCookieName string
	AccessHeaderName  string
	AccessAuthScheme  string

	// Set 'Secure' on the auth cookies. Disable for plain http dev setups only
	InsecureCookies bool
}

type RegisterParams struct {
	Username    string
	Email       string
	DisplayName string
	Password    string
}

// AuthService turns credentials into token pairs and tokens back into users.
// The refresh fingerprint stored on the user row makes at most one refresh
// token valid per user: every login or refresh overwrites it, logout clears it.
type AuthService struct {
	token  *tokenmanager.TokenManager
	hasher PasswordHasher

	userRepo repository.UserRepo

	accessCookieName  string
	refreshCookieName string
	accessHeaderName  string
	accessAuthScheme  string
	secureCookies     bool
}

func NewService(cfg Config, token *tokenmanager.TokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = DefaultHasher
	}

	setDefaultString := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefaultString(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefaultString(&cfg.RefreshCookieName, defaultRefreshCookieName)
	setDefaultString(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefaultString(&cfg.AccessAuthScheme, defaultAccessAuthScheme)

	return &AuthService{
		token:             token,
		hasher:            hasher,
		userRepo:          userRepo,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		secureCookies:     !cfg.InsecureCookies,
	}, nil
}

// Register creates the user and logs it in right away:
// the caller gets a valid token pair together with the new user
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return models.User{}, pair, fmt.Errorf("can't use this as password. Err: %w", err)
	}

	user, err := s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Username:       params.Username,
		Email:          params.Email,
		DisplayName:    params.DisplayName,
		HashedPassword: hash,
	})
	if err != nil {
		return models.User{}, pair, err
	}

	pair, err = s.startSession(ctx, user.ID)
	if err != nil {
		return models.User{}, pair, err
	}

	return user, pair, nil
}

// Login with username or email
// Unknown user and wrong password are indistinguishable for the caller
func (s *AuthService) Login(ctx context.Context, login string, password string) (models.User, models.TokenPair, error) {
	var pair models.TokenPair

	user, err := s.userRepo.GetUserByLogin(ctx, login)
	if err != nil {
		// Burn comparable CPU time so unknown users can't be told apart by latency
		_ = s.hasher.Compare(dummyPasswordHash, password)
		return models.User{}, pair, apperrors.ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, pair, apperrors.ErrInvalidCredentials
	}

	pair, err = s.startSession(ctx, user.ID)
	if err != nil {
		return models.User{}, pair, err
	}

	return user, pair, nil
}

// RefreshPair exchanges a valid refresh token for a fresh pair and rotates
// the stored fingerprint. Refresh tokens are one time use: presenting the
// same token after a successful refresh fails with ErrRefreshTokenRevoked
func (s *AuthService) RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error) {
	var pair models.TokenPair

	claims, err := s.token.Parse(refresh, tokenmanager.KindRefresh)
	if err != nil {
		return pair, err
	}

	pair, err = s.token.GeneratePair(claims.UserID)
	if err != nil {
		return pair, err
	}

	// Single statement compare-and-swap: with two concurrent refreshes of the
	// same token only one swap matches, the loser gets ErrRefreshTokenRevoked
	err = s.userRepo.RotateRefreshFingerprint(ctx, claims.UserID, fingerprint(refresh), fingerprint(pair.Refresh.Value))
	if err != nil {
		return models.TokenPair{}, err
	}

	return pair, nil
}

// Logout invalidates the refresh token by clearing the stored fingerprint.
// Idempotent. Already issued access tokens stay valid until their natural
// expiry: the exposure window is bounded by the access token TTL
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	err := s.userRepo.ClearRefreshFingerprint(ctx, userID)
	if err != nil {
		return fmt.Errorf("error while clearing refresh fingerprint. Err: %w", err)
	}

	return nil
}

// Auth resolves the request to a user: extract access token, validate it and
// load the user so a deleted account can't keep acting on a stale token
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.User, error) {
	access, err := s.ReadAccessToken(r)
	if err != nil {
		return models.User{}, err
	}

	claims, err := s.token.Parse(access, tokenmanager.KindAccess)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

// Issue pair and persist the refresh fingerprint, overwriting any previous one
func (s *AuthService) startSession(ctx context.Context, userID uuid.UUID) (models.TokenPair, error) {
	pair, err := s.token.GeneratePair(userID)
	if err != nil {
		return pair, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	err = s.userRepo.SetRefreshFingerprint(ctx, userID, fingerprint(pair.Refresh.Value))
	if err != nil {
		return pair, fmt.Errorf("error while saving refresh fingerprint. Err: %w", err)
	}

	return pair, nil
}

// SetTokenPair writes both tokens to the response: httpOnly cookies for
// browsers plus the Authorization header for header based clients
func (s *AuthService) SetTokenPair(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.accessCookieName,
		Value:    pair.Access.Value,
		Expires:  pair.Access.ExpiresAt,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Expires:  pair.Refresh.ExpiresAt,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)
}

// ClearTokenPair expires both auth cookies on the response
func (s *AuthService) ClearTokenPair(w http.ResponseWriter) {
	for _, name := range []string{s.accessCookieName, s.refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// SetTokenPairToRequest mirrors SetTokenPair for outgoing requests, handy in tests
func (s *AuthService) SetTokenPairToRequest(r *http.Request, pair models.TokenPair) {
	r.AddCookie(&http.Cookie{Name: s.accessCookieName, Value: pair.Access.Value})
	r.AddCookie(&http.Cookie{Name: s.refreshCookieName, Value: pair.Refresh.Value})
	r.Header.Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)
}

// ReadAccessToken extracts the access token from the request.
// The httpOnly cookie wins over the bearer header when both are present
func (s *AuthService) ReadAccessToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(s.accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	header := r.Header.Get(s.accessHeaderName)
	scheme, token, found := strings.Cut(header, " ")
	if found && strings.EqualFold(scheme, s.accessAuthScheme) && token != "" {
		return strings.TrimSpace(token), nil
	}

	return "", apperrors.ErrTokenMalformed
}

// ReadRefreshToken extracts the refresh token from the request cookie
func (s *AuthService) ReadRefreshToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", apperrors.ErrTokenMalformed
	}

	return cookie.Value, nil
}

// IsTokenError reports whether err belongs to the token failure taxonomy.
// Handlers collapse all of those into one unauthorized response
func IsTokenError(err error) bool {
	return errors.Is(err, apperrors.ErrTokenMalformed) ||
		errors.Is(err, apperrors.ErrTokenSignatureInvalid) ||
		errors.Is(err, apperrors.ErrTokenExpired) ||
		errors.Is(err, apperrors.ErrRefreshTokenRevoked)
}

// Fingerprint of a refresh token as stored on the user row.
// The db keeps the digest only, never the token itself
func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

package service

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/reportdeck/reportdeck/internal/model"
	"github.com/reportdeck/reportdeck/internal/repository"
	"github.com/reportdeck/reportdeck/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
)

type AuthService struct {
	userRepository   repository.UserRepository
	agencyRepository repository.AgencyRepository
	jwtSecret        string
	jwtExpiry        time.Duration
	isProduction     bool
}

func NewAuthService(
	userRepository repository.UserRepository,
	agencyRepository repository.AgencyRepository,
	jwtSecret string,
	jwtExpiry time.Duration,
	isProduction bool,
) *AuthService {
	return &AuthService{
		userRepository:   userRepository,
		agencyRepository: agencyRepository,
		jwtSecret:        jwtSecret,
		jwtExpiry:        jwtExpiry,
		isProduction:     isProduction,
	}
}

// Signup creates the user, their agency, and the admin membership. Every
// account belongs to an agency from the first request on.
func (s *AuthService) Signup(email, password, fullName, agencyName string) (*model.User, *model.Agency, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, nil, err
	}
	if err := validation.ValidateName(agencyName); err != nil {
		return nil, nil, fmt.Errorf("agency %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    now,
	}

	if err := s.userRepository.Create(user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, ErrEmailAlreadyExists
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	agency := &model.Agency{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(agencyName),
		Slug:        slugify(agencyName),
		Status:      model.AgencyStatusOnboarding,
		ReportLimit: 10,
		CreatedBy:   user.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.agencyRepository.Create(agency); err != nil {
		return nil, nil, fmt.Errorf("failed to create agency: %w", err)
	}

	member := &model.AgencyUser{
		AgencyID:  agency.ID,
		UserID:    user.ID,
		Role:      model.AgencyRoleAdmin,
		CreatedAt: now,
	}
	if err := s.agencyRepository.AddMember(member); err != nil {
		return nil, nil, fmt.Errorf("failed to add agency member: %w", err)
	}

	return user, agency, nil
}

func (s *AuthService) Login(email, password string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.userRepository.ByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *AuthService) GenerateJWT(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

func (s *AuthService) JWTExpiry() time.Duration {
	return s.jwtExpiry
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Expires:  time.Unix(0, 0),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify keeps slugs unique by appending a short random suffix; agency
// names collide often enough that deriving uniqueness from the name alone
// is not worth the retry loop.
func slugify(name string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "agency"
	}
	return slug + "-" + uuid.New().String()[:8]
}

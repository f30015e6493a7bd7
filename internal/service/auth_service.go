package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"murmur/internal/models"
	"murmur/internal/repository"
	"murmur/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// AuthService registers and authenticates accounts, local and federated.
type AuthService struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

type SignupInput struct {
	Username string
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

// ExternalIdentity is what an OAuth provider reports about the signed-in account.
type ExternalIdentity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	Avatar     string
}

func NewAuthService(userRepo repository.UserRepository) *AuthService {
	return &AuthService{userRepo: userRepo, bcryptCost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateMaxLength("name", in.Name, validation.MaxNameLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email is already registered")
	}
	existing, err = s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username is already taken")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	name := in.Name
	if name == "" {
		name = in.Username
	}
	user := &models.User{
		Username: in.Username,
		Name:     name,
		Email:    in.Email,
		Password: string(hashed),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login checks a password against the stored hash. Unknown emails, wrong
// passwords and OAuth-only accounts all produce the same error.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*models.User, error) {
	invalid := models.NewUnauthorizedError("Invalid credentials")
	if in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, invalid
	}
	return user, nil
}

// LoginExternal resolves a federated identity to an account. It looks up the
// provider id first, then links an existing account with the same email, and
// finally creates a new password-less account.
func (s *AuthService) LoginExternal(ctx context.Context, id ExternalIdentity) (*models.User, error) {
	if id.Provider == "" || id.ProviderID == "" {
		return nil, models.NewUnauthorizedError("Identity provider returned no account id")
	}

	user, err := s.userRepo.GetByProvider(ctx, id.Provider, id.ProviderID)
	if err != nil || user != nil {
		return user, err
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email == "" {
		return nil, models.NewValidationError("Identity provider returned no email")
	}

	user, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if user.Provider != nil {
			return nil, models.NewConflictError("Email is linked to another identity")
		}
		if err := s.userRepo.LinkProvider(ctx, user.ID, id.Provider, id.ProviderID); err != nil {
			return nil, err
		}
		user.Provider, user.ProviderID = &id.Provider, &id.ProviderID
		return user, nil
	}

	username, err := s.freeUsername(ctx, email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = username
	}
	user = &models.User{
		Username:   username,
		Name:       truncate(name, validation.MaxNameLength),
		Email:      email,
		Avatar:     id.Avatar,
		Provider:   &id.Provider,
		ProviderID: &id.ProviderID,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

var usernameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// freeUsername derives a handle from the email local part and appends a
// counter until it is unused.
func (s *AuthService) freeUsername(ctx context.Context, email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	base := strings.Trim(usernameUnsafe.ReplaceAllString(local, "_"), "_")
	if len(base) < 3 {
		base = "user_" + base
	}
	base = strings.TrimRight(truncate(base, 24), "_")

	candidate := base
	for i := 1; i <= 100; i++ {
		existing, err := s.userRepo.GetByUsername(ctx, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", models.NewConflictError("Could not allocate a username")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

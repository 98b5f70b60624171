package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-feed-identity/internal/account/entity"
	"github.com/ovaphlow/pitchfork/service-feed-identity/pkg/utilities"
)

// Repository persists accounts. Lookups take normalized values and return
// an error wrapping ErrAccountNotFound when nothing matches. Save is an
// upsert that also writes the owned profile; it reports unique violations
// as ErrUsernameExists or ErrEmailExists.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*entity.Account, error)
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)
	Save(ctx context.Context, a *entity.Account) (*entity.Account, error)
	FindAll(ctx context.Context) ([]*entity.Account, error)
}

// Notifier sends account emails best-effort. Implementations own their
// failure handling; nothing they do can fail the calling operation.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, a *entity.Account)
	SendPasswordResetEmail(ctx context.Context, a *entity.Account)
}

// TokenIssuer mints signed bearer tokens for a subject.
type TokenIssuer interface {
	Issue(subject string, ttl time.Duration) (string, error)
}

// SignupInput is the candidate account submitted at signup.
type SignupInput struct {
	Username     string `json:"username"`
	EmailAddress string `json:"emailAddress"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
}

// AccountPatch lists optional account changes; nil or blank means keep.
type AccountPatch struct {
	FirstName    *string `json:"firstName"`
	LastName     *string `json:"lastName"`
	Phone        *string `json:"phone"`
	EmailAddress *string `json:"emailAddress"`
	Password     *string `json:"password"`
}

// ProfilePatch lists optional profile changes; nil or blank means keep.
type ProfilePatch struct {
	Headline   *string `json:"headline"`
	Bio        *string `json:"bio"`
	City       *string `json:"city"`
	Country    *string `json:"country"`
	PictureURL *string `json:"pictureUrl"`
}

// Service implements signup, authentication, email verification, password
// reset and partial account/profile updates. Caller-scoped operations take
// the caller's username explicitly.
type Service struct {
	repo     Repository
	hasher   PasswordHasher
	auth     Authenticator
	issuer   TokenIssuer
	notifier Notifier
	logger   *zap.SugaredLogger

	tokenTTL time.Duration
	newID    func() string
	now      func() time.Time
}

type Option func(*Service)

// WithAuthenticator replaces the default HasherAuthenticator.
func WithAuthenticator(a Authenticator) Option { return func(s *Service) { s.auth = a } }

func WithTokenTTL(ttl time.Duration) Option { return func(s *Service) { s.tokenTTL = ttl } }

func WithIDGenerator(f func() string) Option { return func(s *Service) { s.newID = f } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(r Repository, hasher PasswordHasher, issuer TokenIssuer, notifier Notifier, logger *zap.SugaredLogger, opts ...Option) *Service {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	s := &Service{
		repo:     r,
		hasher:   hasher,
		issuer:   issuer,
		notifier: notifier,
		logger:   logger,
		tokenTTL: time.Hour,
		newID:    utilities.NewIDGenerator(1).NewID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = HasherAuthenticator{Repo: r, Hasher: hasher}
	}
	return s
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Signup creates an unverified account and sends the verification email.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*entity.Account, error) {
	const op = "account.Signup"
	username := normalize(in.Username)
	email := normalize(in.EmailAddress)
	if username == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return nil, newError(op, ErrInvalidInput, "username, email address and password are required")
	}

	if err := s.ensureUnique(ctx, op, username, email); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	acc := &entity.Account{
		ID:            s.newID(),
		Username:      username,
		EmailAddress:  email,
		PasswordHash:  digest,
		EmailVerified: false,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Phone:         strings.TrimSpace(in.Phone),
		CreatedAt:     s.now().UTC(),
	}
	saved, err := s.save(ctx, op, acc)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("account created", "account_id", saved.ID, "username", saved.Username)

	s.notifier.SendVerificationEmail(ctx, saved)
	return saved, nil
}

// ensureUnique checks username before email so a double collision reports
// the username.
func (s *Service) ensureUnique(ctx context.Context, op, username, email string) error {
	if u, err := s.repo.FindByUsername(ctx, username); err == nil {
		return newError(op, ErrUsernameExists, "username already exists, %s", u.Username)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return fmt.Errorf("find by username: %w", err)
	}
	if u, err := s.repo.FindByEmail(ctx, email); err == nil {
		return newError(op, ErrEmailExists, "email already exists, %s", u.EmailAddress)
	} else if !errors.Is(err, ErrAccountNotFound) {
		return fmt.Errorf("find by email: %w", err)
	}
	return nil
}

// VerifyEmail marks the caller's email address verified. Repeated calls
// succeed and leave the account verified.
func (s *Service) VerifyEmail(ctx context.Context, caller string) error {
	const op = "account.VerifyEmail"
	acc, err := s.resolve(ctx, op, caller)
	if err != nil {
		return err
	}
	acc.EmailVerified = true
	_, err = s.save(ctx, op, acc)
	return err
}

// Authenticate verifies credentials first and only then reports whether the
// account still needs email verification.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*entity.Account, error) {
	const op = "account.Authenticate"
	if err := s.auth.Authenticate(ctx, username, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, err
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	acc, err := s.resolve(ctx, op, username)
	if err != nil {
		return nil, err
	}
	if !acc.EmailVerified {
		return nil, newError(op, ErrEmailNotVerified, "email requires verification, %s", acc.EmailAddress)
	}
	return acc, nil
}

// GenerateSessionHeader returns an Authorization header value carrying a
// fresh token for username.
func (s *Service) GenerateSessionHeader(username string) (string, error) {
	if s.issuer == nil {
		return "", errors.New("no token issuer configured")
	}
	token, err := s.issuer.Issue(normalize(username), s.tokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return "Bearer " + token, nil
}

// RequestPasswordReset sends the reset email when the address is known.
// An unknown address is not an error, so responses don't reveal which
// addresses have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddress string) error {
	email := normalize(emailAddress)
	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.logger.Debugw("password reset requested for unknown email", "email", email)
			return nil
		}
		return fmt.Errorf("find by email: %w", err)
	}
	s.notifier.SendPasswordResetEmail(ctx, acc)
	return nil
}

// ResetPassword replaces the caller's password.
func (s *Service) ResetPassword(ctx context.Context, caller, newPassword string) (*entity.Account, error) {
	const op = "account.ResetPassword"
	acc, err := s.resolve(ctx, op, caller)
	if err != nil {
		return nil, err
	}
	changed, err := MergePassword(acc, &newPassword, s.hasher.Hash, setPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if !changed {
		return nil, newError(op, ErrInvalidInput, "password is required")
	}
	return s.save(ctx, op, acc)
}

// UpdateAccount merges patch into the caller's account.
func (s *Service) UpdateAccount(ctx context.Context, caller string, patch AccountPatch) (*entity.Account, error) {
	const op = "account.UpdateAccount"
	if email, ok := present(patch.EmailAddress); ok {
		other, err := s.repo.FindByEmail(ctx, normalize(email))
		switch {
		case err == nil && other.Username != normalize(caller):
			return nil, newError(op, ErrEmailExists, "email already exists, %s", other.EmailAddress)
		case err != nil && !errors.Is(err, ErrAccountNotFound):
			return nil, fmt.Errorf("find by email: %w", err)
		}
	}

	acc, err := s.resolve(ctx, op, caller)
	if err != nil {
		return nil, err
	}
	Merge(acc,
		Field[entity.Account]{Value: patch.FirstName, Set: func(a *entity.Account, v string) { a.FirstName = v }},
		Field[entity.Account]{Value: patch.LastName, Set: func(a *entity.Account, v string) { a.LastName = v }},
		Field[entity.Account]{Value: patch.Phone, Set: func(a *entity.Account, v string) { a.Phone = v }},
		Field[entity.Account]{Value: patch.EmailAddress, Set: func(a *entity.Account, v string) { a.EmailAddress = strings.ToLower(v) }},
	)
	if _, err := MergePassword(acc, patch.Password, s.hasher.Hash, setPasswordHash); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.save(ctx, op, acc)
}

// UpdateProfile merges patch into the caller's profile, creating the
// profile on first use.
func (s *Service) UpdateProfile(ctx context.Context, caller string, patch ProfilePatch) (*entity.Account, error) {
	const op = "account.UpdateProfile"
	acc, err := s.resolve(ctx, op, caller)
	if err != nil {
		return nil, err
	}
	if acc.Profile == nil {
		acc.AttachProfile(&entity.Profile{})
	}
	Merge(acc.Profile,
		Field[entity.Profile]{Value: patch.Headline, Set: func(p *entity.Profile, v string) { p.Headline = v }},
		Field[entity.Profile]{Value: patch.Bio, Set: func(p *entity.Profile, v string) { p.Bio = v }},
		Field[entity.Profile]{Value: patch.City, Set: func(p *entity.Profile, v string) { p.City = v }},
		Field[entity.Profile]{Value: patch.Country, Set: func(p *entity.Profile, v string) { p.Country = v }},
		Field[entity.Profile]{Value: patch.PictureURL, Set: func(p *entity.Profile, v string) { p.PictureURL = v }},
	)
	return s.save(ctx, op, acc)
}

// ListAccounts returns every account, oldest first.
func (s *Service) ListAccounts(ctx context.Context) ([]*entity.Account, error) {
	accounts, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("find all: %w", err)
	}
	return accounts, nil
}

// FindByUsername looks an account up by its (case-insensitive) username.
func (s *Service) FindByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return s.resolve(ctx, "account.FindByUsername", username)
}

// CurrentAccount returns the caller's own account.
func (s *Service) CurrentAccount(ctx context.Context, caller string) (*entity.Account, error) {
	return s.resolve(ctx, "account.CurrentAccount", caller)
}

func (s *Service) resolve(ctx context.Context, op, username string) (*entity.Account, error) {
	name := normalize(username)
	acc, err := s.repo.FindByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, newError(op, ErrAccountNotFound, "username doesn't exist, %s", name)
		}
		return nil, fmt.Errorf("find by username: %w", err)
	}
	return acc, nil
}

func (s *Service) save(ctx context.Context, op string, acc *entity.Account) (*entity.Account, error) {
	saved, err := s.repo.Save(ctx, acc)
	if err != nil {
		if errors.Is(err, ErrUsernameExists) || errors.Is(err, ErrEmailExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}
	return saved, nil
}

type noopNotifier struct{}

func (noopNotifier) SendVerificationEmail(context.Context, *entity.Account)  {}
func (noopNotifier) SendPasswordResetEmail(context.Context, *entity.Account) {}

func setPasswordHash(a *entity.Account, digest string) { a.PasswordHash = digest }

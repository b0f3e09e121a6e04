package services

import (
	"context"
	"errors"
	"log"
	"time"

	"vinted/internal/credentials"
	"vinted/internal/models"
	"vinted/internal/repositories"
)

// Messages returned to clients by the auth flows.
const (
	MsgUserExists       = "User already exists"
	MsgLogsDontMatch    = "Logs don't match"
	MsgAccountLocked    = "Account is temporarily locked due to login attempts"
	MsgTooManyAttempts  = "Too many login attempts, account is temporarily inaccessible"
	MsgUnauthorized     = "Unauthorized"
	MsgUserNotFound     = "User not found"
	MsgPasswordTooShort = "You must provide a valid password (10 chars at least)"
)

const MinPasswordLength = 10

// SignupInput carries an already-validated signup request.
type SignupInput struct {
	Username   string
	Email      string
	Password   string
	Newsletter bool
}

// AuthService handles account creation, login and bearer token resolution.
type AuthService struct {
	accountRepo repositories.AccountRepository
	creds       *credentials.Manager
	lockout     credentials.LockoutPolicy
	timeout     time.Duration
	now         func() time.Time
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithLockout replaces the default lockout policy, which never locks.
func WithLockout(p credentials.LockoutPolicy) AuthOption {
	return func(s *AuthService) {
		if p != nil {
			s.lockout = p
		}
	}
}

// WithAuthTimeout bounds each store call.
func WithAuthTimeout(d time.Duration) AuthOption {
	return func(s *AuthService) { s.timeout = d }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// NewAuthService creates a new AuthService.
func NewAuthService(accountRepo repositories.AccountRepository, creds *credentials.Manager, opts ...AuthOption) *AuthService {
	if creds == nil {
		creds = credentials.NewManager(nil)
	}
	s := &AuthService{
		accountRepo: accountRepo,
		creds:       creds,
		lockout:     credentials.DisabledLockout{},
		timeout:     DefaultTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates an account with a fresh salt, digest and session token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*models.Account, error) {
	if len(in.Password) < MinPasswordLength {
		return nil, newError(KindValidation, MsgPasswordTooShort, nil)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.accountRepo.GetByEmail(ctx, in.Email); err == nil {
		return nil, newError(KindConflict, MsgUserExists, nil)
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(KindUpstream, "Could not create user", err)
	}

	issued, err := s.creds.Issue(in.Password)
	if err != nil {
		return nil, newError(KindInternal, "Could not create user", err)
	}

	acct := &models.Account{
		Email:      in.Email,
		Profile:    models.Profile{Username: in.Username},
		Newsletter: in.Newsletter,
		Credential: models.Credential{Salt: issued.Salt, Hash: issued.Hash},
		Token:      issued.Token,
	}
	if err := s.accountRepo.Create(ctx, acct); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			return nil, newError(KindConflict, MsgUserExists, err)
		}
		return nil, newError(KindUpstream, "Could not create user", err)
	}

	log.Printf("Account %s created", acct.ID)
	return acct, nil
}

// Login checks a password against the stored digest. Unknown emails and wrong
// passwords produce the same message.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	acct, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(KindValidation, MsgLogsDontMatch, nil)
		}
		return nil, newError(KindUpstream, "Could not log in", err)
	}

	now := s.now()
	if err := s.lockout.Check(acct, now); err != nil {
		return nil, newError(KindValidation, MsgAccountLocked, err)
	}

	if !s.creds.Verify(password, acct.Credential.Salt, acct.Credential.Hash) {
		if s.lockout.RecordFailure(acct, now) {
			if err := s.accountRepo.UpdateLoginState(ctx, acct); err != nil {
				log.Printf("Failed to record login failure for account %s: %v", acct.ID, err)
			}
			if err := s.lockout.Check(acct, now); err != nil {
				return nil, newError(KindValidation, MsgTooManyAttempts, err)
			}
		}
		return nil, newError(KindValidation, MsgLogsDontMatch, nil)
	}

	if s.lockout.RecordSuccess(acct) {
		if err := s.accountRepo.UpdateLoginState(ctx, acct); err != nil {
			log.Printf("Failed to reset login state for account %s: %v", acct.ID, err)
		}
	}
	return acct, nil
}

// Profile looks up an account by its session token.
func (s *AuthService) Profile(ctx context.Context, token string) (*models.Account, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	acct, err := s.accountRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(KindValidation, MsgUserNotFound, err)
		}
		return nil, newError(KindUpstream, "Could not load user", err)
	}
	return acct, nil
}

// Resolve turns an Authorization header into the account owning its token.
// It never consults the lockout policy and never modifies the account.
func (s *AuthService) Resolve(ctx context.Context, header string) (*models.Account, error) {
	token, err := credentials.ParseBearer(header)
	if err != nil {
		return nil, newError(KindUnauthenticated, MsgUnauthorized, err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	acct, err := s.accountRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, newError(KindUnauthenticated, MsgUnauthorized, err)
		}
		return nil, newError(KindUpstream, "Could not authenticate", err)
	}
	return acct, nil
}

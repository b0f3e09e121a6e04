package credentials

import (
	"errors"
	"time"

	"vinted/internal/models"
)

var ErrLocked = errors.New("account is temporarily locked due to login attempts")

// LockoutPolicy decides whether repeated login failures lock an account.
// Record* methods mutate the account and report whether it must be persisted.
type LockoutPolicy interface {
	Check(acct *models.Account, now time.Time) error
	RecordFailure(acct *models.Account, now time.Time) bool
	RecordSuccess(acct *models.Account) bool
}

var (
	_ LockoutPolicy = DisabledLockout{}
	_ LockoutPolicy = (*AttemptLockout)(nil)
)

// DisabledLockout never rejects a login. A successful login still clears any
// stale failure counter.
type DisabledLockout struct{}

func (DisabledLockout) Check(*models.Account, time.Time) error { return nil }

func (DisabledLockout) RecordFailure(*models.Account, time.Time) bool { return false }

func (DisabledLockout) RecordSuccess(acct *models.Account) bool {
	if acct.FailedLoginCount == 0 && acct.LockUntil == nil {
		return false
	}
	acct.FailedLoginCount = 0
	acct.LockUntil = nil
	return true
}

// AttemptLockout locks an account for LockFor once MaxAttempts consecutive
// failures are recorded.
type AttemptLockout struct {
	MaxAttempts int
	LockFor     time.Duration
}

// NewAttemptLockout returns a policy locking for five minutes after three failures.
func NewAttemptLockout() *AttemptLockout {
	return &AttemptLockout{MaxAttempts: 3, LockFor: 5 * time.Minute}
}

func (p *AttemptLockout) Check(acct *models.Account, now time.Time) error {
	if acct.LockUntil != nil && now.Before(*acct.LockUntil) {
		return ErrLocked
	}
	return nil
}

func (p *AttemptLockout) RecordFailure(acct *models.Account, now time.Time) bool {
	acct.FailedLoginCount++
	if acct.FailedLoginCount >= p.MaxAttempts {
		until := now.Add(p.LockFor)
		acct.LockUntil = &until
		acct.FailedLoginCount = 0
	}
	return true
}

func (p *AttemptLockout) RecordSuccess(acct *models.Account) bool {
	return DisabledLockout{}.RecordSuccess(acct)
}

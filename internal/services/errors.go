package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("unified user not found")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrInvalidProvider    = errors.New("unknown credential provider")
	ErrInvalidCredential  = errors.New("provider user id is required")
	ErrForbidden          = errors.New("identity is not owned by the caller")
	ErrLastIdentity       = errors.New("cannot unlink the last identity of an account")
	ErrCorruptState       = errors.New("corrupt account forwarding chain")
	ErrStaleMerge         = errors.New("merge is stale; request a fresh preview")
	ErrMergeNotConfirmed  = errors.New("merge requires explicit confirmation")
	ErrMergeSelf          = errors.New("cannot merge an account into itself")
	ErrTokenInvalid       = errors.New("merge token is invalid")
	ErrTokenExpired       = errors.New("merge token has expired")
	ErrTokenConsumed      = errors.New("merge token has already been used")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidRefresh     = errors.New("invalid or expired refresh token")
	ErrMergeTargetMissing = errors.New("merge requires a token or an explicit source")
)

// StaleMergeError reports that the accounts named by a merge request are no
// longer two distinct roots. SourceRoot and TargetRoot are their current roots.
type StaleMergeError struct {
	Source     uuid.UUID
	Target     uuid.UUID
	SourceRoot uuid.UUID
	TargetRoot uuid.UUID
}

func (e *StaleMergeError) Error() string {
	return fmt.Sprintf("merge of %s into %s is stale (now %s into %s)", e.Source, e.Target, e.SourceRoot, e.TargetRoot)
}

func (e *StaleMergeError) Is(target error) bool {
	return target == ErrStaleMerge
}

// AlreadyCombined reports whether both accounts already resolve to one root,
// i.e. an earlier merge covering this request has committed.
func (e *StaleMergeError) AlreadyCombined() bool {
	return e.SourceRoot != uuid.Nil && e.SourceRoot == e.TargetRoot
}

package persist

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/debemdeboas/the-pantry/internal/model"
	"github.com/debemdeboas/the-pantry/internal/repository"
)

var (
	ErrOffline  = errors.New("remote draft store is unreachable")
	ErrNoBackup = errors.New("no local backup for draft")
)

// Kind classifies a failed commit.
type Kind int

const (
	// KindTransient failures are retried after a backoff delay.
	KindTransient Kind = iota + 1
	// KindPermanent failures are not retried until the content changes.
	KindPermanent
	// KindOffline means no network attempt was made.
	KindOffline
	// KindExhausted is a transient failure on the last allowed attempt.
	KindExhausted
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindOffline:
		return "offline"
	case KindExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the only error type Commit returns.
type Error struct {
	Kind    Kind
	Attempt int

	// RetryAfter is set for transient failures.
	RetryAfter time.Duration

	Err error
}

func (e *Error) Error() string {
	if e.Kind == KindTransient {
		return fmt.Sprintf("%s failure on attempt %d, retrying in %s: %v", e.Kind, e.Attempt, e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("%s failure: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status is the draft status a failure of this kind surfaces.
// Transient failures keep the status the draft already had.
func (e *Error) Status(current model.Status) model.Status {
	switch e.Kind {
	case KindOffline:
		return model.StatusOffline
	case KindTransient:
		return current
	}
	return model.StatusError
}

// Classify maps an error from the remote store to a Kind.
func Classify(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, ErrOffline) {
		return KindOffline
	}

	// Validation first: a 422 StatusError also matches ErrValidation.
	if errors.Is(err, repository.ErrValidation) {
		return KindPermanent
	}
	if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
		return KindTransient
	}

	var se *repository.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code >= http.StatusInternalServerError,
			se.Code == http.StatusRequestTimeout,
			se.Code == http.StatusTooManyRequests:
			return KindTransient
		case se.Code >= http.StatusBadRequest:
			return KindPermanent
		}
	}

	// Timeouts, refused or reset connections and anything unrecognized.
	return KindTransient
}

// Backoff is the delay before retry number attempt: base doubling per
// attempt, capped at max.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

package app

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Consumer-side interfaces for the collaborators the services need beyond
// the repositories.

// URLCache caches signed download URLs by storage key.
type URLCache interface {
	Get(ctx context.Context, storageKey string) (string, bool, error)
	Set(ctx context.Context, storageKey, url string, ttl time.Duration) error
	Delete(ctx context.Context, storageKeys ...string) error
}

type Metrics interface {
	ObserveSaga(saga, outcome string)
	ObserveCompensation(saga, step string, err error)
	ObservePurged(kind string, n int64)
	ObservePurgeFailure(stage string)
	ObserveCacheLookup(hit bool)
}

// PurgeNotifier wakes the purger ahead of its next tick.
type PurgeNotifier interface {
	Nudge()
}

type TokenIssuer interface {
	Generate(userID uuid.UUID, username string) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyDummy(password string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSaga(string, string)                {}
func (noopMetrics) ObserveCompensation(string, string, error) {}
func (noopMetrics) ObservePurged(string, int64)               {}
func (noopMetrics) ObservePurgeFailure(string)                {}
func (noopMetrics) ObserveCacheLookup(bool)                   {}

type noopNotifier struct{}

func (noopNotifier) Nudge() {}

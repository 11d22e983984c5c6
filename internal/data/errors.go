package data

import (
	"errors"
	"fmt"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a forecast job does not exist.
	ErrJobNotFound = errors.New("forecast job not found")
	// ErrInvalidTransition is returned when a conditional status update finds the job in another state.
	ErrInvalidTransition = errors.New("invalid job status transition")
	// ErrClaimSuperseded is returned when a fenced update runs under a claim the reaper has since
	// replaced. It matches ErrInvalidTransition.
	ErrClaimSuperseded = fmt.Errorf("%w: job was reclaimed", ErrInvalidTransition)
	// ErrDuplicateResult is returned when a result for (target_date, job_id) already exists.
	ErrDuplicateResult = errors.New("forecast result already exists")
	// ErrInvalidBand is returned when the store rejects an incomplete or inverted p10/p90 band.
	ErrInvalidBand = errors.New("invalid forecast band")
	// ErrEpochLocked is returned when another writer holds the ratio epoch lock.
	ErrEpochLocked = errors.New("day type ratio epoch is being replaced by another writer")
)

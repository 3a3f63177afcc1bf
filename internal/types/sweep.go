package types

import "time"

type (
	// A repository pinned at the revision it had at sweep time, nil if it had none
	RepoRevision struct {
		Grade *Score  `json:"grade,omitempty"`
		Rev   *string `json:"rev"`
		Spec  Spec    `json:"spec"`
	}

	SweepRecord struct {
		When     time.Time      `json:"when"`
		Started  time.Time      `json:"started"`
		Finished *time.Time     `json:"finished,omitempty"`
		Kind     string         `json:"kind"`
		Proj     string         `json:"proj"`
		RepoRevs []RepoRevision `json:"reporevs"`
	}

	// Pending timer for a sweep, only lives in memory
	ScheduledSweep struct {
		When time.Time `json:"when"`
		Kind string    `json:"kind"`
		Proj string    `json:"proj"`
	}
)

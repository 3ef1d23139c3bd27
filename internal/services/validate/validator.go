// Package validate checks the structural guarantees of monthly datasets.
package validate

import (
	"time"

	"EnergyPull/internal/domain/models"
	"EnergyPull/pkg/util"
)

// Check names one validation rule.
type Check string

const (
	CheckCompleteness Check = "completeness"
	CheckFrequency    Check = "monthly_frequency"
	CheckUniqueDates  Check = "unique_dates"
	CheckNoFuture     Check = "no_future_dates"
)

// Result is the outcome of Validate. Failed is empty when every check passed.
type Result struct {
	Failed Check
	Err    error
}

func (r Result) OK() bool { return r.Err == nil }

// Validator runs the checks in a fixed order and stops at the first failure.
type Validator struct {
	now func() time.Time
}

// New builds a validator reading the clock from now. A nil now means time.Now.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

func (v *Validator) Validate(f *models.MonthlyFrame) Result {
	if cells := f.MissingCells(); len(cells) > 0 {
		return Result{Failed: CheckCompleteness, Err: &models.IncompleteDataError{Cells: cells}}
	}

	dates := f.Dates()
	for i := 1; i < len(dates); i++ {
		days := util.DaysBetween(dates[i-1], dates[i])
		if days < 28 || days > 31 {
			return Result{Failed: CheckFrequency, Err: &models.FrequencyMismatchError{Prev: dates[i-1], Next: dates[i], Days: days}}
		}
	}

	seen := make(map[time.Time]bool, len(dates))
	var dups []time.Time
	for _, d := range dates {
		if seen[d] {
			dups = append(dups, d)
		}
		seen[d] = true
	}
	if len(dups) > 0 {
		return Result{Failed: CheckUniqueDates, Err: &models.DuplicateDateError{Dates: dups}}
	}

	now := v.now()
	var future []time.Time
	for _, d := range dates {
		if d.After(now) {
			future = append(future, d)
		}
	}
	if len(future) > 0 {
		return Result{Failed: CheckNoFuture, Err: &models.FutureDateError{Dates: future, Now: now}}
	}

	return Result{}
}

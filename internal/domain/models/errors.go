package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stable error codes reported in run reports, logs and HTTP responses.
const (
	CodeMissingSeries       = "MISSING_SERIES"
	CodeMalformedSeries     = "MALFORMED_SERIES"
	CodeEmptyIntersection   = "EMPTY_INTERSECTION"
	CodeIncompleteData      = "INCOMPLETE_DATA"
	CodeFrequencyMismatch   = "FREQUENCY_MISMATCH"
	CodeDuplicateDate       = "DUPLICATE_DATE"
	CodeFutureDate          = "FUTURE_DATE"
	CodeResidualNaN         = "RESIDUAL_NAN"
	CodeArchive             = "ARCHIVE_FAILED"
	CodeSchema              = "SCHEMA_MISMATCH"
	CodeQualityCheck        = "QUALITY_CHECK_FAILED"
	CodeInsufficientHistory = "INSUFFICIENT_HISTORY"
	CodeRunInProgress       = "RUN_IN_PROGRESS"
	CodeInternal            = "INTERNAL"
)

type coded interface {
	Code() string
}

// ErrorCode returns the code of the first typed error in err's chain, or CodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeInternal
}

// MissingSeriesError: no raw file for a catalog indicator.
type MissingSeriesError struct {
	Indicator string
	Dir       string
}

func (e *MissingSeriesError) Error() string {
	return fmt.Sprintf("missing series %q: no raw file in %s", e.Indicator, e.Dir)
}
func (e *MissingSeriesError) Code() string { return CodeMissingSeries }

// MalformedSeriesError: a raw file cannot be turned into a series.
type MalformedSeriesError struct {
	Indicator string
	Path      string
	Reason    string
	Err       error
}

func (e *MalformedSeriesError) Error() string {
	msg := fmt.Sprintf("malformed series %q", e.Indicator)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}
func (e *MalformedSeriesError) Code() string  { return CodeMalformedSeries }
func (e *MalformedSeriesError) Unwrap() error { return e.Err }

// EmptyIntersectionError: at least one column has no valid value after merge.
type EmptyIntersectionError struct {
	Columns []string
}

func (e *EmptyIntersectionError) Error() string {
	return "empty intersection: no valid values for " + strings.Join(e.Columns, ", ")
}
func (e *EmptyIntersectionError) Code() string { return CodeEmptyIntersection }

// IncompleteDataError: missing cells remain in a frame that must be complete.
type IncompleteDataError struct {
	Cells []Cell
}

func (e *IncompleteDataError) Error() string {
	const show = 5
	parts := make([]string, 0, show)
	for i, c := range e.Cells {
		if i == show {
			break
		}
		parts = append(parts, c.String())
	}
	msg := fmt.Sprintf("incomplete data: %d missing cells [%s", len(e.Cells), strings.Join(parts, " "))
	if len(e.Cells) > show {
		msg += " ..."
	}
	return msg + "]"
}
func (e *IncompleteDataError) Code() string { return CodeIncompleteData }

// FrequencyMismatchError: two consecutive rows are not one month apart.
type FrequencyMismatchError struct {
	Prev time.Time
	Next time.Time
	Days int
}

func (e *FrequencyMismatchError) Error() string {
	return fmt.Sprintf("frequency mismatch: %s -> %s is %d days",
		e.Prev.Format("2006-01-02"), e.Next.Format("2006-01-02"), e.Days)
}
func (e *FrequencyMismatchError) Code() string { return CodeFrequencyMismatch }

// DuplicateDateError: the same month appears more than once.
type DuplicateDateError struct {
	Dates []time.Time
}

func (e *DuplicateDateError) Error() string {
	return "duplicate dates: " + joinDates(e.Dates)
}
func (e *DuplicateDateError) Code() string { return CodeDuplicateDate }

// FutureDateError: rows dated after the run clock.
type FutureDateError struct {
	Dates []time.Time
	Now   time.Time
}

func (e *FutureDateError) Error() string {
	return fmt.Sprintf("future dates after %s: %s", e.Now.Format("2006-01-02"), joinDates(e.Dates))
}
func (e *FutureDateError) Code() string { return CodeFutureDate }

// ResidualNaNError: missing values survived the feature warm-up trim.
type ResidualNaNError struct {
	Cells []Cell
}

func (e *ResidualNaNError) Error() string {
	return fmt.Sprintf("residual missing values after feature engineering: %d cells", len(e.Cells))
}
func (e *ResidualNaNError) Code() string { return CodeResidualNaN }

// ArchiveError: a raw file could not be moved. Files in Archived were moved before the failure.
type ArchiveError struct {
	Indicator string
	Path      string
	Archived  []ArchiveRecord
	Err       error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %q (%s) failed after %d moved: %v", e.Indicator, e.Path, len(e.Archived), e.Err)
}
func (e *ArchiveError) Code() string  { return CodeArchive }
func (e *ArchiveError) Unwrap() error { return e.Err }

// SchemaError: required input columns are absent.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "schema mismatch: missing columns " + strings.Join(e.Missing, ", ")
}
func (e *SchemaError) Code() string { return CodeSchema }

// QualityCheckError: a derived feature violates its value constraints.
type QualityCheckError struct {
	Column string
	Date   time.Time
	Value  float64
	Reason string
}

func (e *QualityCheckError) Error() string {
	return fmt.Sprintf("quality check failed: %s at %s = %g: %s",
		e.Column, e.Date.Format("2006-01-02"), e.Value, e.Reason)
}
func (e *QualityCheckError) Code() string { return CodeQualityCheck }

// InsufficientHistoryError: too few rows to survive the feature warm-up.
type InsufficientHistoryError struct {
	Rows int
	Need int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: %d rows, need at least %d", e.Rows, e.Need)
}
func (e *InsufficientHistoryError) Code() string { return CodeInsufficientHistory }

// RunInProgressError: another run holds the run lock.
type RunInProgressError struct {
	Key string
}

func (e *RunInProgressError) Error() string {
	return "run already in progress (lock " + e.Key + ")"
}
func (e *RunInProgressError) Code() string { return CodeRunInProgress }

func joinDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format("2006-01-02")
	}
	return strings.Join(parts, ", ")
}

package historydb

import (
	"errors"
	"fmt"
)

// ==================== Sentinel Errors ====================
// These can be checked with errors.Is()

var (
	// ErrDatabaseNotOpen is returned when operating on a closed database
	ErrDatabaseNotOpen = fmt.Errorf("database not open")

	// ErrEmptyUUID is returned when a run ID or record UUID is empty
	ErrEmptyUUID = fmt.Errorf("UUID cannot be empty")

	// ErrEmptyURL is returned when a download record has no URL
	ErrEmptyURL = fmt.Errorf("URL cannot be empty")

	// ErrRecordNotFound is returned when a run or download record doesn't exist
	ErrRecordNotFound = fmt.Errorf("record not found")

	// ErrBucketNotFound is returned when a required bucket doesn't exist
	ErrBucketNotFound = fmt.Errorf("database bucket not found")

	// ErrCorruptedData is returned when stored data cannot be parsed
	ErrCorruptedData = fmt.Errorf("corrupted database data")
)

// ==================== Structured Error Types ====================

// DatabaseError wraps database operation errors with the operation and
// bucket involved.
type DatabaseError struct {
	// Op is the operation that failed (e.g., "open", "create bucket")
	Op string

	// Bucket is the bucket involved (empty if not applicable)
	Bucket string

	Err error
}

func (e *DatabaseError) Error() string {
	if e.Bucket != "" {
		return fmt.Sprintf("database %s [bucket: %s]: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// RecordError wraps run or download record errors with the record's ID.
type RecordError struct {
	Op   string
	UUID string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s [uuid: %s]: %v", e.Op, e.UUID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// ValidationError reports an invalid argument.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation failed [%s=%s]: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("validation failed [%s]: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRecordNotFound reports whether err means a record is missing.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// IsDatabaseError reports whether err is a DatabaseError.
func IsDatabaseError(err error) bool {
	var de *DatabaseError
	return errors.As(err, &de)
}

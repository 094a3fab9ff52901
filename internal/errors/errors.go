package errors

import "fmt"

// API client errors

// ErrAuth indicates the token exchange failed or returned a malformed
// payload.
type ErrAuth struct {
	URL string
	Err error
}

func (e *ErrAuth) Error() string {
	return fmt.Sprintf("token exchange against %s failed: %v", e.URL, e.Err)
}

func (e *ErrAuth) Unwrap() error {
	return e.Err
}

// ErrRequest indicates a data fetch failed with a transport error or a
// non-2xx status. StatusCode is zero for transport failures.
type ErrRequest struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ErrRequest) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *ErrRequest) Unwrap() error {
	return e.Err
}

// Store errors

// ErrNotFound indicates a query for a guid with no stored quota. Callers
// map this to a 404-style response, not a server error.
type ErrNotFound struct {
	GUID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("quota not found: %s", e.GUID)
}

// ErrConstraint indicates a composite-uniqueness breach. It should not
// occur while writes go through the upsert path.
type ErrConstraint struct {
	Table string
	Err   error
}

func (e *ErrConstraint) Error() string {
	return fmt.Sprintf("uniqueness constraint violated on %s: %v", e.Table, e.Err)
}

func (e *ErrConstraint) Unwrap() error {
	return e.Err
}

// Config errors

type ErrConfigNotFound struct {
	Path string
}

func (e *ErrConfigNotFound) Error() string {
	return fmt.Sprintf("config file not found: %s", e.Path)
}

type ErrConfigParse struct {
	Err error
}

func (e *ErrConfigParse) Error() string {
	return fmt.Sprintf("failed to parse YAML: %v", e.Err)
}

func (e *ErrConfigParse) Unwrap() error {
	return e.Err
}

type ErrConfigValidation struct {
	Err error
}

func (e *ErrConfigValidation) Error() string {
	return fmt.Sprintf("config validation failed: %v", e.Err)
}

func (e *ErrConfigValidation) Unwrap() error {
	return e.Err
}

// Database errors

type ErrDatabaseOpen struct {
	Path string
	Err  error
}

func (e *ErrDatabaseOpen) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *ErrDatabaseOpen) Unwrap() error {
	return e.Err
}

type ErrDatabaseMigration struct {
	Version int
	Err     error
}

func (e *ErrDatabaseMigration) Error() string {
	return fmt.Sprintf("database migration %d failed: %v", e.Version, e.Err)
}

func (e *ErrDatabaseMigration) Unwrap() error {
	return e.Err
}

type ErrDatabaseQuery struct {
	Operation string
	Err       error
}

func (e *ErrDatabaseQuery) Error() string {
	return fmt.Sprintf("database query failed for operation %s: %v", e.Operation, e.Err)
}

func (e *ErrDatabaseQuery) Unwrap() error {
	return e.Err
}

// Filesystem errors

type ErrDirectoryCreate struct {
	Path string
	Err  error
}

func (e *ErrDirectoryCreate) Error() string {
	return fmt.Sprintf("failed to create directory %s: %v", e.Path, e.Err)
}

func (e *ErrDirectoryCreate) Unwrap() error {
	return e.Err
}

type ErrFileRead struct {
	Path string
	Err  error
}

func (e *ErrFileRead) Error() string {
	return fmt.Sprintf("failed to read file %s: %v", e.Path, e.Err)
}

func (e *ErrFileRead) Unwrap() error {
	return e.Err
}

// Server errors

type ErrServerStart struct {
	Addr string
	Err  error
}

func (e *ErrServerStart) Error() string {
	return fmt.Sprintf("failed to start server on %s: %v", e.Addr, e.Err)
}

func (e *ErrServerStart) Unwrap() error {
	return e.Err
}

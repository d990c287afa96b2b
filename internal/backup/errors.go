package backup

import (
	"errors"
	"fmt"
)

// User-facing messages. These strings are part of the result contract.
const (
	MsgInvalidBackupFormat = "Invalid backup format"
	MsgInvalidJSON         = "Invalid JSON format"
	MsgEmptyBackupFile     = "Backup file is empty"
	MsgFileTooLarge        = "Backup file exceeds size limit"
	MsgUnsupportedFileType = "Unsupported backup file type"
	MsgFileUnreadable      = "Backup file could not be read"
	MsgRecordCountMismatch = "Backup metadata record count does not match table contents"
	MsgIncompatibleVersion = "Incompatible backup version"
	MsgBackupCancelled     = "Backup cancelled by user"
	MsgNoFileSelected      = "No backup file selected"
	MsgRequiresDesktop     = "Auto-backup requires desktop environment"
	MsgAutoBackupFailed    = "Auto-backup failed"
	MsgUnknownSaveError    = "Unknown error occurred"
	MsgUnknownLoadError    = "Failed to load backup file"
	MsgUnknownRestoreError = "Unknown error occurred during restore"
	MsgCreateBackupFailed  = "Failed to create backup"
)

// ErrorKind tags a BackupError.
type ErrorKind string

const (
	ErrorKindValidation    ErrorKind = "VALIDATION_ERROR"
	ErrorKindIO            ErrorKind = "IO_ERROR"
	ErrorKindCancelled     ErrorKind = "CANCELLED"
	ErrorKindConfiguration ErrorKind = "CONFIGURATION_ERROR"
	ErrorKindStorage       ErrorKind = "STORAGE_ERROR"
)

// BackupError is a tagged failure whose Error text is the user-facing message.
type BackupError struct {
	Kind    ErrorKind              `json:"kind"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error returns the user-facing message.
func (e *BackupError) Error() string {
	return e.Message
}

// Detail returns the message with its kind and cause, for logs.
func (e *BackupError) Detail() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewBackupError creates a new BackupError
func NewBackupError(kind ErrorKind, message string, cause error) *BackupError {
	return &BackupError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates an error for a snapshot that failed structural or format checks
func NewValidationError(message string, cause error) *BackupError {
	return NewBackupError(ErrorKindValidation, message, cause)
}

// NewIOError creates an error for a failed file read or write
func NewIOError(message string, cause error) *BackupError {
	return NewBackupError(ErrorKindIO, message, cause)
}

// NewCancelledError creates an error for an operation the user cancelled
func NewCancelledError(message string) *BackupError {
	return NewBackupError(ErrorKindCancelled, message, nil)
}

// NewConfigurationError creates an error for an unusable environment or setting
func NewConfigurationError(message string, cause error) *BackupError {
	return NewBackupError(ErrorKindConfiguration, message, cause)
}

// NewStorageError creates an error for a failed record store operation
func NewStorageError(message string, cause error) *BackupError {
	return NewBackupError(ErrorKindStorage, message, cause)
}

// KindOf returns the kind of the first BackupError in err's chain.
func KindOf(err error) ErrorKind {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Kind
	}
	return ""
}

// messageOr returns err's message, or fallback when err carries none.
func messageOr(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}

// describe renders err for structured logs.
func describe(err error) string {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Detail()
	}
	return err.Error()
}

// ValidationError represents a single failed envelope check
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

package backup

import (
	"bytes"

	"github.com/goccy/go-json"
)

// MaxBackupFileSize bounds the size of a snapshot file accepted for restore.
const MaxBackupFileSize = 100 * 1024 * 1024

// BackupToJSON serializes the envelope with two-space indentation.
// Metadata fields keep their declared order; data and record keys are sorted.
func BackupToJSON(envelope *Envelope) ([]byte, error) {
	if envelope == nil {
		return nil, NewValidationError(MsgInvalidBackupFormat, nil)
	}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, NewValidationError(MsgInvalidBackupFormat, err)
	}
	return data, nil
}

// ParseBackupJSON decodes and validates snapshot text.
func ParseBackupJSON(content []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, NewValidationError(MsgEmptyBackupFile, nil)
	}
	if len(content) > MaxBackupFileSize {
		return nil, NewValidationError(MsgFileTooLarge, nil).WithContext("size", len(content))
	}

	var tree interface{}
	if err := json.Unmarshal(content, &tree); err != nil {
		return nil, NewValidationError(MsgInvalidJSON, err)
	}

	object, ok := tree.(map[string]interface{})
	if !ok {
		return nil, NewValidationError(MsgInvalidBackupFormat, notAnObject(""))
	}
	if errs := validateTree(object); errs.HasErrors() {
		return nil, NewValidationError(MsgInvalidBackupFormat, errs)
	}

	var envelope Envelope
	if err := json.Unmarshal(content, &envelope); err != nil {
		return nil, NewValidationError(MsgInvalidBackupFormat, err)
	}
	return &envelope, nil
}

package backup

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Record limits for a restorable snapshot.
const (
	MaxTotalRecords      = 200000
	MaxCollectionRecords = 100000
)

var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// createdAtLayouts are the timestamp forms accepted for metadata.createdAt.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ValidateBackup reports whether candidate is a structurally valid envelope.
// It accepts *Envelope, Envelope and decoded JSON trees (map[string]interface{}).
func ValidateBackup(candidate interface{}) bool {
	return !validateCandidate(candidate).HasErrors()
}

func validateCandidate(candidate interface{}) ValidationErrors {
	switch v := candidate.(type) {
	case *Envelope:
		if v == nil {
			return notAnObject("")
		}
		return validateEnvelope(v)
	case Envelope:
		return validateEnvelope(&v)
	case map[string]interface{}:
		return validateTree(v)
	default:
		return notAnObject("")
	}
}

func notAnObject(field string) ValidationErrors {
	var errs ValidationErrors
	errs.Add(field, "must be an object", nil)
	return errs
}

func validateEnvelope(e *Envelope) ValidationErrors {
	var errs ValidationErrors

	validateVersion(&errs, e.Metadata.Version)
	if !isValidCreatedAt(e.Metadata.CreatedAt) {
		errs.Add("metadata.createdAt", "must be a valid date", e.Metadata.CreatedAt)
	}
	if e.Metadata.TableCount != ManagedTableCount {
		errs.Add("metadata.tableCount", fmt.Sprintf("must equal %d", ManagedTableCount), e.Metadata.TableCount)
	}
	if e.Metadata.TotalRecords < 0 {
		errs.Add("metadata.totalRecords", "must be a non-negative integer", e.Metadata.TotalRecords)
	}
	checkDeclaredTotal(&errs, int64(e.Metadata.TotalRecords))

	if e.Data == nil {
		errs.Add("data", "must be an object", nil)
		return errs
	}
	total := 0
	for collection, records := range e.Data {
		total += len(records)
		if !checkCollectionSize(&errs, collection, len(records)) {
			continue
		}
		for i, record := range records {
			if record == nil {
				errs.Add(fmt.Sprintf("data.%s[%d]", collection, i), "must be an object", nil)
			}
		}
	}
	checkContentTotal(&errs, total)
	return errs
}

func validateTree(tree map[string]interface{}) ValidationErrors {
	var errs ValidationErrors

	metadata, ok := tree["metadata"].(map[string]interface{})
	if !ok {
		errs.Add("metadata", "must be an object", tree["metadata"])
	} else {
		version, isString := metadata["version"].(string)
		if !isString {
			errs.Add("metadata.version", "must be a string", metadata["version"])
		} else {
			validateVersion(&errs, version)
		}

		createdAt, isString := metadata["createdAt"].(string)
		if !isString || !isValidCreatedAt(createdAt) {
			errs.Add("metadata.createdAt", "must be a valid date", metadata["createdAt"])
		}

		if appVersion, present := metadata["appVersion"]; present {
			if _, isString := appVersion.(string); !isString {
				errs.Add("metadata.appVersion", "must be a string", appVersion)
			}
		}

		tableCount, isInt := asInteger(metadata["tableCount"])
		if !isInt || tableCount != int64(ManagedTableCount) {
			errs.Add("metadata.tableCount", fmt.Sprintf("must equal %d", ManagedTableCount), metadata["tableCount"])
		}

		totalRecords, isInt := asInteger(metadata["totalRecords"])
		if !isInt || totalRecords < 0 {
			errs.Add("metadata.totalRecords", "must be a non-negative integer", metadata["totalRecords"])
		} else {
			checkDeclaredTotal(&errs, totalRecords)
		}
	}

	data, ok := tree["data"].(map[string]interface{})
	if !ok {
		errs.Add("data", "must be an object", tree["data"])
		return errs
	}
	total := 0
	for collection, raw := range data {
		records, isList := raw.([]interface{})
		if !isList {
			errs.Add("data."+collection, "must be a list", raw)
			continue
		}
		total += len(records)
		if !checkCollectionSize(&errs, collection, len(records)) {
			continue
		}
		for i, record := range records {
			if _, isObject := record.(map[string]interface{}); !isObject {
				errs.Add(fmt.Sprintf("data.%s[%d]", collection, i), "must be an object", record)
			}
		}
	}
	checkContentTotal(&errs, total)
	return errs
}

func checkDeclaredTotal(errs *ValidationErrors, declared int64) {
	if declared > MaxTotalRecords {
		errs.Add("metadata.totalRecords", fmt.Sprintf("must not exceed %d", MaxTotalRecords), declared)
	}
}

// checkCollectionSize reports whether the collection is small enough to inspect further.
func checkCollectionSize(errs *ValidationErrors, collection string, size int) bool {
	if size > MaxCollectionRecords {
		errs.Add("data."+collection, fmt.Sprintf("must not hold more than %d records", MaxCollectionRecords), size)
		return false
	}
	return true
}

func checkContentTotal(errs *ValidationErrors, total int) {
	if total > MaxTotalRecords {
		errs.Add("data", fmt.Sprintf("must not hold more than %d records in total", MaxTotalRecords), total)
	}
}

func validateVersion(errs *ValidationErrors, version string) {
	if !semverPattern.MatchString(version) {
		errs.Add("metadata.version", "must be MAJOR.MINOR.PATCH", version)
	}
}

func isValidCreatedAt(value string) bool {
	if value == "" {
		return false
	}
	for _, layout := range createdAtLayouts {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// asInteger accepts JSON numbers that hold an integral value.
func asInteger(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// majorVersion returns the MAJOR component of a semantic version.
func majorVersion(version string) (int, error) {
	major, _, found := strings.Cut(version, ".")
	if !found {
		return 0, fmt.Errorf("invalid version %q", version)
	}
	return strconv.Atoi(major)
}

// IsCompatibleVersion reports whether a snapshot of the given version may be restored.
func IsCompatibleVersion(version string) bool {
	supported, err := majorVersion(BackupVersion)
	if err != nil {
		return false
	}
	major, err := majorVersion(version)
	return err == nil && major == supported
}

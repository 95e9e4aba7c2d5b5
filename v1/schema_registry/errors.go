package schema_registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrSubjectNotFound is returned when the registry does not know a subject.
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrSchemaNotFound is returned for an unknown schema id or version.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrInvalidWireFormat is returned when a payload does not carry the
	// registry framing.
	ErrInvalidWireFormat = errors.New("invalid schema registry wire format")
)

// Confluent error codes that map to sentinels.
const (
	codeSubjectNotFound = 40401
	codeVersionNotFound = 40402
	codeSchemaNotFound  = 40403
)

// RegistryError is a non-200 response from the registry.
type RegistryError struct {
	StatusCode int
	ErrorCode  int    `json:"error_code"`
	Message    string `json:"message"`
}

func (e *RegistryError) Error() string {
	if e.ErrorCode != 0 {
		return fmt.Sprintf("schema registry returned status %d (error_code %d): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("schema registry returned status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is match the not-found sentinels.
func (e *RegistryError) Is(target error) bool {
	switch target {
	case ErrSubjectNotFound:
		return e.ErrorCode == codeSubjectNotFound
	case ErrSchemaNotFound:
		return e.ErrorCode == codeSchemaNotFound || e.ErrorCode == codeVersionNotFound
	}
	return false
}

func newRegistryError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	regErr := &RegistryError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(raw, regErr); err != nil || regErr.Message == "" {
		regErr.Message = string(raw)
	}
	regErr.StatusCode = resp.StatusCode
	return regErr
}

// IsNotFound reports whether err means the subject, version or schema is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSubjectNotFound) || errors.Is(err, ErrSchemaNotFound)
}

// StatusCode extracts the HTTP status of a registry error, or 0.
func StatusCode(err error) int {
	var regErr *RegistryError
	if errors.As(err, &regErr) {
		return regErr.StatusCode
	}
	return 0
}

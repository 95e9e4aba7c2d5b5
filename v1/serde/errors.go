package serde

import "errors"

var (
	// ErrConfiguration is returned when registry or codec settings are
	// missing or malformed.
	ErrConfiguration = errors.New("serde configuration error")

	// ErrRegistryConnectivity is returned when the schema registry cannot be
	// reached or refuses a request.
	ErrRegistryConnectivity = errors.New("schema registry unavailable")

	// ErrSchemaTranslation is returned when a logical schema has no wire
	// representation.
	ErrSchemaTranslation = errors.New("schema translation failed")

	// ErrSerialization is returned when a record does not conform to the schema.
	ErrSerialization = errors.New("serialization failed")

	// ErrDeserialization is returned for malformed or unresolvable payloads.
	ErrDeserialization = errors.New("deserialization failed")

	// ErrClosed is returned by codecs used after Close.
	ErrClosed = errors.New("serde closed")

	// ErrUnknownFormat is returned when no factory is registered for a format.
	ErrUnknownFormat = errors.New("unknown serde format")
)

// IsConstructionError reports whether err stopped a codec from being built.
func IsConstructionError(err error) bool {
	return errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrRegistryConnectivity) ||
		errors.Is(err, ErrSchemaTranslation)
}

// IsRecordError reports whether err concerns a single record rather than the
// codec as a whole.
func IsRecordError(err error) bool {
	return errors.Is(err, ErrSerialization) || errors.Is(err, ErrDeserialization)
}

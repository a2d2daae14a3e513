package vehicle

import "errors"

var (
	// ErrVRMRequired is returned when the registration is empty
	ErrVRMRequired = errors.New("vrm is required")

	// ErrMissingDimensions is returned when the provider has no length, width or height
	ErrMissingDimensions = errors.New("missing vehicle dimensions")

	// ErrLookupFailed is returned when the provider call fails or answers with an error
	ErrLookupFailed = errors.New("vehicle lookup failed")

	// ErrNotConfigured is returned when no API key is configured
	ErrNotConfigured = errors.New("vehicle lookup is not configured")
)

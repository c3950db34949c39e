package itinerary

import "errors"

var (
	// ErrInvalidRequest is returned when a planning request fails validation.
	ErrInvalidRequest = errors.New("invalid itinerary request")

	// ErrNoCandidatesFound means the events search returned nothing to plan with.
	ErrNoCandidatesFound = errors.New("no events found for your criteria")

	// ErrSynthesisSchema means the model output could not be turned into entries.
	ErrSynthesisSchema = errors.New("itinerary synthesis returned malformed output")

	// ErrUnknownDocument means no live itinerary exists under the given identifier.
	ErrUnknownDocument = errors.New("itinerary not found")

	// ErrProviderUnavailable marks a failed call to a mapping provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

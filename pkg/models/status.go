package models

// OutcomeKind tags a FetchOutcome
type OutcomeKind string

const (
	OutcomeUnset    OutcomeKind = ""          // Zero value = unset/unknown
	OutcomeBody     OutcomeKind = "body"      // A usable HTML body was received
	OutcomeNotFound OutcomeKind = "not_found" // Target answered 404
	OutcomeFailed   OutcomeKind = "failed"    // Retries exhausted or non-retryable failure
)

// String implements fmt.Stringer for logging
func (k OutcomeKind) String() string {
	if k == "" {
		return "unset"
	}
	return string(k)
}

// IsValid returns true if the kind is a known terminal value
func (k OutcomeKind) IsValid() bool {
	switch k {
	case OutcomeBody, OutcomeNotFound, OutcomeFailed:
		return true
	}
	return false
}

// SpacingClass selects which configured delay range the rate limiter draws from
type SpacingClass string

const (
	SpacingRequest SpacingClass = "inter_request"
	SpacingHotel   SpacingClass = "inter_hotel"
	SpacingPage    SpacingClass = "inter_page"
)

// String implements fmt.Stringer for logging
func (c SpacingClass) String() string {
	if c == "" {
		return "unset"
	}
	return string(c)
}

// IsValid returns true if the class is one of the configured spacing classes
func (c SpacingClass) IsValid() bool {
	switch c {
	case SpacingRequest, SpacingHotel, SpacingPage:
		return true
	}
	return false
}

package kernel

import (
	"time"
	"unicode/utf8"
)

// ValidatePagination rejects limit = 0 or limit > MaxPaginationLimit.
func ValidatePagination(offset, limit uint64) error {
	if limit == 0 || limit > MaxPaginationLimit {
		return NewError(PaginationError, "limit must be in (0, %d], got %d", MaxPaginationLimit, limit)
	}
	return nil
}

// ValidateWasmSize rejects empty or oversized images.
func ValidateWasmSize(image []byte) error {
	if len(image) == 0 {
		return NewError(WasmSizeExceeded, "wasm image must not be empty")
	}
	if len(image) > MaxWasmSize {
		return NewError(WasmSizeExceeded, "wasm image exceeds %d bytes", MaxWasmSize)
	}
	return nil
}

// ValidateDisplayName requires 1-50 codepoints.
func ValidateDisplayName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < 1 || n > MaxDisplayNameLength {
		return NewError(InvalidInput, "display name must be 1-%d codepoints, got %d", MaxDisplayNameLength, n)
	}
	return nil
}

// ValidateDescription requires at most 1000 codepoints (empty allowed).
func ValidateDescription(text string) error {
	n := utf8.RuneCountInString(text)
	if n > MaxDescriptionLength {
		return NewError(InvalidInput, "description exceeds %d codepoints, got %d", MaxDescriptionLength, n)
	}
	return nil
}

// ValidateInterfaceDescription requires a non-empty string of at most 10000 codepoints.
func ValidateInterfaceDescription(text string) error {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return NewError(InvalidInput, "interface description must not be empty")
	}
	if n > MaxInterfaceDescription {
		return NewError(InvalidInput, "interface description exceeds %d codepoints, got %d", MaxInterfaceDescription, n)
	}
	return nil
}

// ValidateChallengeDuration requires duration within [MinChallengeDuration, MaxChallengeDuration].
func ValidateChallengeDuration(d time.Duration) error {
	if d < MinChallengeDuration || d > MaxChallengeDuration {
		return NewError(TimeRangeError, "duration must be within [%s, %s], got %s", MinChallengeDuration, MaxChallengeDuration, d)
	}
	return nil
}

// ValidateDifficulty requires 1 <= n <= 5.
func ValidateDifficulty(n int) error {
	if n < 1 || n > 5 {
		return NewError(InvalidInput, "difficulty must be in [1,5], got %d", n)
	}
	return nil
}

// CheckCallerNotAnonymous rejects the zero-value principal.
func CheckCallerNotAnonymous(caller Principal) error {
	if caller.IsAnonymous() {
		return ErrAnonymous
	}
	return nil
}

package kernel

import (
	"strings"
	"testing"
	"time"
)

func TestValidatePagination(t *testing.T) {
	cases := []struct {
		name    string
		limit   uint64
		wantErr bool
	}{
		{"zero limit rejected", 0, true},
		{"at max accepted", MaxPaginationLimit, false},
		{"over max rejected", MaxPaginationLimit + 1, true},
		{"one accepted", 1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePagination(0, tc.limit)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for limit %d", tc.limit)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error for limit %d: %v", tc.limit, err)
			}
			if tc.wantErr {
				if kind := KindOf(err); kind != PaginationError {
					t.Fatalf("expected PaginationError, got %s", kind)
				}
			}
		})
	}
}

func TestValidateWasmSize(t *testing.T) {
	if err := ValidateWasmSize(nil); KindOf(err) != WasmSizeExceeded {
		t.Fatalf("expected WasmSizeExceeded for empty image, got %v", err)
	}
	if err := ValidateWasmSize(make([]byte, MaxWasmSize+1)); KindOf(err) != WasmSizeExceeded {
		t.Fatalf("expected WasmSizeExceeded for oversized image, got %v", err)
	}
	if err := ValidateWasmSize(make([]byte, MaxWasmSize)); err != nil {
		t.Fatalf("unexpected error at exact max size: %v", err)
	}
	if err := ValidateWasmSize([]byte{0x00, 0x61, 0x73, 0x6d}); err != nil {
		t.Fatalf("unexpected error for small valid image: %v", err)
	}
}

func TestValidateDisplayName(t *testing.T) {
	if err := ValidateDisplayName(""); err == nil {
		t.Fatal("expected error for empty display name")
	}
	if err := ValidateDisplayName(strings.Repeat("a", MaxDisplayNameLength+1)); err == nil {
		t.Fatal("expected error for oversized display name")
	}
	if err := ValidateDisplayName(strings.Repeat("a", MaxDisplayNameLength)); err != nil {
		t.Fatalf("unexpected error at exact max length: %v", err)
	}
	if err := ValidateDisplayName("a"); err != nil {
		t.Fatalf("unexpected error for single-char name: %v", err)
	}
}

func TestValidateDescription(t *testing.T) {
	if err := ValidateDescription(""); err != nil {
		t.Fatalf("empty description should be allowed: %v", err)
	}
	if err := ValidateDescription(strings.Repeat("a", MaxDescriptionLength)); err != nil {
		t.Fatalf("unexpected error at exact max: %v", err)
	}
	if err := ValidateDescription(strings.Repeat("a", MaxDescriptionLength+1)); err == nil {
		t.Fatal("expected error for oversized description")
	}
}

func TestValidateInterfaceDescription(t *testing.T) {
	if err := ValidateInterfaceDescription(""); err == nil {
		t.Fatal("expected error for empty interface description")
	}
	if err := ValidateInterfaceDescription("candid interface"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateInterfaceDescription(strings.Repeat("a", MaxInterfaceDescription+1)); err == nil {
		t.Fatal("expected error for oversized interface description")
	}
}

func TestValidateChallengeDuration(t *testing.T) {
	if err := ValidateChallengeDuration(MinChallengeDuration - time.Nanosecond); KindOf(err) != TimeRangeError {
		t.Fatalf("expected TimeRangeError just below minimum, got %v", err)
	}
	if err := ValidateChallengeDuration(MinChallengeDuration); err != nil {
		t.Fatalf("unexpected error at exact minimum: %v", err)
	}
	if err := ValidateChallengeDuration(MaxChallengeDuration); err != nil {
		t.Fatalf("unexpected error at exact maximum: %v", err)
	}
	if err := ValidateChallengeDuration(MaxChallengeDuration + time.Nanosecond); KindOf(err) != TimeRangeError {
		t.Fatalf("expected TimeRangeError just above maximum, got %v", err)
	}
}

func TestValidateDifficulty(t *testing.T) {
	for n := 1; n <= 5; n++ {
		if err := ValidateDifficulty(n); err != nil {
			t.Fatalf("difficulty %d should be valid: %v", n, err)
		}
	}
	if err := ValidateDifficulty(0); err == nil {
		t.Fatal("expected error for difficulty 0")
	}
	if err := ValidateDifficulty(6); err == nil {
		t.Fatal("expected error for difficulty 6")
	}
}

func TestCheckCallerNotAnonymous(t *testing.T) {
	if err := CheckCallerNotAnonymous(AnonymousPrincipal); err == nil {
		t.Fatal("expected error for anonymous principal")
	}
	var caller Principal
	caller[0] = 1
	if err := CheckCallerNotAnonymous(caller); err != nil {
		t.Fatalf("unexpected error for non-anonymous principal: %v", err)
	}
}

package validator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		got := IsEmpty(c.input)
		if got != c.want {
			t.Errorf("IsEmpty(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // v7
		"123e4567-e89b-42d3-a456-426614174000", // v4
		"0188D0F2-7B8C-7B4A-8A2B-6B8B8B8B8B8B", // uppercase
	}
	invalid := []string{
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",     // missing dashes
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b", // invalid hex
		"123e4567-e89b-02d3-a456-426614174000", // version 0
		"",
	}
	for _, uuid := range valid {
		if !IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = false, want true", uuid)
		}
	}
	for _, uuid := range invalid {
		if IsValidUUID(uuid) {
			t.Errorf("IsValidUUID(%q) = true, want false", uuid)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	if _, ok := IsValidDate("2024-02-29"); !ok {
		t.Errorf("IsValidDate(2024-02-29) = false, want true")
	}
	if _, ok := IsValidDate("2023-02-29"); ok {
		t.Errorf("IsValidDate(2023-02-29) = true, want false")
	}
	if _, ok := IsValidDate("29-02-2024"); ok {
		t.Errorf("IsValidDate(29-02-2024) = true, want false")
	}
}

func TestIsNonNegative(t *testing.T) {
	if !IsNonNegative(decimal.Zero) {
		t.Errorf("zero must be non-negative")
	}
	if IsNonNegative(decimal.NewFromInt(-1)) {
		t.Errorf("-1 must be negative")
	}
}

func TestHasDuplicates(t *testing.T) {
	if HasDuplicates([]string{"a", "b"}) {
		t.Errorf("HasDuplicates(a,b) = true, want false")
	}
	if !HasDuplicates([]string{"a", "b", "a"}) {
		t.Errorf("HasDuplicates(a,b,a) = false, want true")
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.OrNil() != nil {
		t.Fatalf("empty errors must be nil")
	}
	errs.Add("month", "must be between 1 and 12")
	errs.Add("year", "is required")

	err := errs.OrNil()
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "month: must be between 1 and 12; year: is required" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if errs.ToMap()["year"] != "is required" {
		t.Errorf("ToMap lost field")
	}
}

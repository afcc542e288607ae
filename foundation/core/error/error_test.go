// File: error_test.go
// Title: Error Module Tests
// Description: Tests for error creation, wrapping, code propagation and
//              severity mapping.
// Author: msto63
// Version: v0.2.0
// Created: 2025-01-24
// Modified: 2026-10-19

package error

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	msg := "test error message"
	err := New(msg)

	if err == nil {
		t.Fatal("New() returned nil")
	}
	if err.Error() != msg {
		t.Errorf("Error() = %q, want %q", err.Error(), msg)
	}
	if err.Code() != CodeUnknown {
		t.Errorf("Code() = %v, want %v", err.Code(), CodeUnknown)
	}
	if err.Severity() != SeverityMedium {
		t.Errorf("Severity() = %v, want %v", err.Severity(), SeverityMedium)
	}
	if err.Timestamp().IsZero() {
		t.Error("Timestamp() should not be zero")
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		wantNil  bool
		wantMsg  string
		wantCode Code
	}{
		{
			name:    "wrap nil error",
			err:     nil,
			message: "context",
			wantNil: true,
		},
		{
			name:     "wrap standard error",
			err:      errors.New("disk full"),
			message:  "save failed",
			wantMsg:  "save failed: disk full",
			wantCode: CodeUnknown,
		},
		{
			name:     "wrap coded error keeps code",
			err:      New("no such flat").WithCode(CodeNotFound),
			message:  "update",
			wantMsg:  "update: no such flat",
			wantCode: CodeNotFound,
		},
		{
			name:     "wrap fmt-wrapped coded error keeps code",
			err:      fmt.Errorf("outer: %w", New("bad").WithCode(CodeInvalidInput)),
			message:  "parse",
			wantMsg:  "parse: outer: bad",
			wantCode: CodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.err, tt.message)
			if tt.wantNil {
				if got != nil {
					t.Errorf("Wrap() = %v, want nil", got)
				}
				return
			}
			if got.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got.Error(), tt.wantMsg)
			}
			if got.Code() != tt.wantCode {
				t.Errorf("Code() = %v, want %v", got.Code(), tt.wantCode)
			}
			if !errors.Is(got, tt.err) {
				t.Error("wrapped error should match its cause with errors.Is")
			}
		})
	}
}

func TestWrapTruncatesDeepChains(t *testing.T) {
	var err error = New("root").WithCode(CodeIOError)
	for i := 0; i < MaxErrorChainDepth+5; i++ {
		err = Wrap(err, "layer")
	}

	if got := GetCode(err); got != CodeIOError {
		t.Errorf("GetCode() = %v, want %v", got, CodeIOError)
	}
	if d := chainDepth(err); d > MaxErrorChainDepth+1 {
		t.Errorf("chain depth = %d, want <= %d", d, MaxErrorChainDepth+1)
	}
}

func TestWithCodeSetsSeverity(t *testing.T) {
	tests := []struct {
		code Code
		want Severity
	}{
		{CodeInvalidInput, SeverityLow},
		{CodeValidationFailed, SeverityLow},
		{CodeNotFound, SeverityLow},
		{CodeForbidden, SeverityMedium},
		{CodeScriptRecursion, SeverityMedium},
		{CodeDatabaseError, SeverityHigh},
		{CodeInternal, SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := New("x").WithCode(tt.code)
			if err.Severity() != tt.want {
				t.Errorf("Severity() = %v, want %v", err.Severity(), tt.want)
			}
		})
	}
}

func TestHasCodeAndGetCode(t *testing.T) {
	inner := New("id 7 not found").WithCode(CodeNotFound)
	outer := fmt.Errorf("remove_by_id: %w", inner)

	if !HasCode(outer, CodeNotFound) {
		t.Error("HasCode() should find code through fmt wrapping")
	}
	if HasCode(outer, CodeForbidden) {
		t.Error("HasCode() reported a code that is not in the chain")
	}
	if GetCode(errors.New("plain")) != CodeUnknown {
		t.Error("GetCode() of a plain error should be CodeUnknown")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := Wrap(New("looping").WithCode(CodeScriptRecursion), "execute_script")
	sentinel := New("").WithCode(CodeScriptRecursion)

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should match errors with the same code")
	}
	if errors.Is(err, New("")) {
		t.Error("a target without code must not match")
	}
}

func TestConstructors(t *testing.T) {
	v := ValidationFailed("coordinates.y", "y must be greater than %d", -318)
	if v.Code() != CodeValidationFailed {
		t.Errorf("Code() = %v", v.Code())
	}
	if v.Details()["field"] != "coordinates.y" {
		t.Errorf("Details()[field] = %v", v.Details()["field"])
	}
	if InvalidInput("bad").Code() != CodeInvalidInput {
		t.Error("InvalidInput() code mismatch")
	}
	if NotFound("gone").Code() != CodeNotFound {
		t.Error("NotFound() code mismatch")
	}
	if Forbidden("nope").Code() != CodeForbidden {
		t.Error("Forbidden() code mismatch")
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New("save failed").
		WithCode(CodeIOError).
		WithOperation("save").
		WithUserID("3").
		WithDetail("path", "/tmp/x.json")

	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("json.Marshal() error = %v", jerr)
	}

	var decoded map[string]interface{}
	if jerr := json.Unmarshal(data, &decoded); jerr != nil {
		t.Fatalf("json.Unmarshal() error = %v", jerr)
	}
	if decoded["code"] != "IO_ERROR" {
		t.Errorf("code = %v", decoded["code"])
	}
	if decoded["operation"] != "save" {
		t.Errorf("operation = %v", decoded["operation"])
	}
	if decoded["severity"] != "medium" {
		t.Errorf("severity = %v", decoded["severity"])
	}
}

func TestString(t *testing.T) {
	s := New("boom").WithCode(CodeInternal).WithDetail("b", 2).WithDetail("a", 1).String()
	for _, want := range []string{"Error: boom", "Code: INTERNAL", "Details: {a=1, b=2}"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() missing %q in %q", want, s)
		}
	}
}

func TestCodeCategory(t *testing.T) {
	tests := map[Code]string{
		CodeInvalidFormat:       "parse",
		CodeValidationFailed:    "validation",
		CodeUnknownCommand:      "not_found",
		CodeForbidden:           "permission",
		CodeDatabaseError:       "io",
		CodeScriptDepthExceeded: "script",
		CodeInternal:            "internal",
	}
	for code, want := range tests {
		if got := code.Category(); got != want {
			t.Errorf("%s.Category() = %q, want %q", code, got, want)
		}
	}
}

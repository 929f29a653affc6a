package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "missing file maps to source unavailable",
			err:         &ParseError{Path: "roster.csv", Err: os.ErrNotExist},
			wantCode:    "SRC001",
			wantMessage: "The roster file could not be opened",
		},
		{
			name:        "invalid UTF-8 maps to encoding",
			err:         &ParseError{Path: "roster.csv", Err: fmt.Errorf("%w (byte offset 12)", ErrInvalidUTF8)},
			wantCode:    "SRC002",
			wantMessage: "The roster file is not UTF-8 text",
		},
		{
			name:        "CSV syntax error with a line maps to invalid CSV",
			err:         &ParseError{Path: "roster.csv", Line: 4, Err: errors.New("wrong number of fields")},
			wantCode:    "SRC003",
			wantMessage: "The roster file could not be parsed",
		},
		{
			name:        "empty export maps to no data",
			err:         &ExportError{Path: "out.xlsx", Err: ErrEmptyResult},
			wantCode:    "EXP001",
			wantMessage: "There are no students to export",
		},
		{
			name:        "unwritable destination",
			err:         &ExportError{Path: "/nope/out.xlsx", Err: os.ErrPermission},
			wantCode:    "EXP002",
			wantMessage: "The spreadsheet could not be saved",
		},
		{
			name:        "busy limiter",
			err:         ErrTooManyRuns,
			wantCode:    "RUN001",
			wantMessage: "Another roster is being processed",
		},
		{
			name:        "wrapped run not found",
			err:         fmt.Errorf("%w: abc", ErrRunNotFound),
			wantCode:    "RUN002",
			wantMessage: "This result is no longer available",
		},
		{
			name:        "cancelled",
			err:         context.Canceled,
			wantCode:    "RUN003",
			wantMessage: "Request was cancelled",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("process: %w", context.DeadlineExceeded),
			wantCode:    "RUN004",
			wantMessage: "Request timed out",
		},
		{
			name:        "untyped quote error maps by pattern",
			err:         errors.New(`parse error on line 3, column 7: bare " in non-quoted-field`),
			wantCode:    "SRC003",
			wantMessage: "The roster file could not be parsed",
		},
		{
			name:        "file too large maps correctly",
			err:         errors.New("file too large: 30MB exceeds limit"),
			wantCode:    "FILE001",
			wantMessage: "File exceeds the maximum upload size",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("NO FILE PROVIDED"),
			wantCode:    "FILE004",
			wantMessage: "No file was selected",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(&ExportError{Err: ErrEmptyResult})

	expected := "There are no students to export (Code: EXP001). Run the filter first, or relax the filter settings"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

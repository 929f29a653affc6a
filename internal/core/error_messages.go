package core

// # Error Codes Reference
//
// User-facing messages with codes for support reference. Users quote the
// code; support staff look it up here.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source unavailable: The roster file could not be opened
//	         Action: Check the file still exists and try again
//	SRC002 - Encoding error: The roster file is not UTF-8
//	         Action: Save the export as "CSV UTF-8" and try again
//	SRC003 - Invalid CSV: The roster file could not be parsed
//	         Action: Check the file is a comma-separated export
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - No data: There are no students to export
//	         Action: Run the filter first, or relax the filter settings
//	EXP002 - Destination unwritable: The spreadsheet could not be saved
//	         Action: Choose a different location or close the file in Excel
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Busy: Another roster is being processed
//	RUN002 - Run not found: The result has expired or never existed
//	RUN003 - Request cancelled
//	RUN004 - Request timed out
//
// # Upload Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE004 - No file selected
//	FILE005 - Form field has an unusable value
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application log for the original
// technical error.
//
// Typed errors are matched with errors.Is first; the text patterns catch
// errors that only carry a message. The first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgSourceUnavailable = UserMessage{
		Message: "The roster file could not be opened",
		Action:  "Check the file still exists and try again",
		Code:    "SRC001",
	}
	msgEncoding = UserMessage{
		Message: "The roster file is not UTF-8 text",
		Action:  "Save the export as \"CSV UTF-8\" and try again",
		Code:    "SRC002",
	}
	msgInvalidCSV = UserMessage{
		Message: "The roster file could not be parsed",
		Action:  "Check the file is a comma-separated export with a header row",
		Code:    "SRC003",
	}
	msgEmptyResult = UserMessage{
		Message: "There are no students to export",
		Action:  "Run the filter first, or relax the filter settings",
		Code:    "EXP001",
	}
	msgDestination = UserMessage{
		Message: "The spreadsheet could not be saved",
		Action:  "Choose a different location, or close the file if it is open in Excel",
		Code:    "EXP002",
	}
	msgBusy = UserMessage{
		Message: "Another roster is being processed",
		Action:  "Please wait a moment and try again",
		Code:    "RUN001",
	}
	msgRunNotFound = UserMessage{
		Message: "This result is no longer available",
		Action:  "Upload the roster file again",
		Code:    "RUN002",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "RUN003",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try again, or use a smaller file",
		Code:    "RUN004",
	}
)

// errorKind maps a sentinel error to its user message.
type errorKind struct {
	target error
	msg    UserMessage
}

// errorKinds is checked in order, so more specific kinds come first.
var errorKinds = []errorKind{
	{ErrInvalidUTF8, msgEncoding},
	{ErrEmptyResult, msgEmptyResult},
	{ErrDestinationUnwritable, msgDestination},
	{ErrTooManyRuns, msgBusy},
	{ErrRunNotFound, msgRunNotFound},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
	{ErrSourceUnavailable, msgSourceUnavailable},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that reach the web layer without a sentinel,
// matched case-insensitively with strings.Contains.
var errorPatterns = []errorPattern{
	{pattern: "bare \" in non-quoted-field", msg: msgInvalidCSV},
	{pattern: "extraneous or missing \" in quoted-field", msg: msgInvalidCSV},
	{pattern: "invalid csv", msg: msgInvalidCSV},
	{pattern: "encoding error", msg: msgEncoding},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Export fewer columns or split the roster",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a roster file (CSV or XLSX)",
			Code:    "FILE004",
		},
	},
	{
		pattern: "invalid form field",
		msg: UserMessage{
			Message: "A form field has an invalid value",
			Action:  "Send no_tutor as true or false",
			Code:    "FILE005",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	_, err := Export(nil, "out.xlsx")
//	msg := MapError(err)
//	// msg.Code == "EXP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			if k.target == ErrSourceUnavailable && isCSVSyntaxError(err) {
				return msgInvalidCSV
			}
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

func isCSVSyntaxError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Line > 0
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

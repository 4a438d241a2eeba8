package core

// error_messages.go maps failures to short operator-facing messages with a
// code that can be quoted when reporting a problem.
//
//	SRC001 - Source not found     (KindSourceNotFound)
//	SRC002 - Malformed source     (KindMalformedSource)
//	DB001  - Database unreachable (KindConnectionUnavailable)
//	DB002  - Schema conflict      (KindSchemaConflict)
//	DB003  - Write rejected       (KindWriteFailure)
//	NET001 - Download failed      (KindDownloadFailure)
//	RUN001 - Run cancelled        ("context canceled")
//	RUN002 - Run timed out        ("context deadline exceeded")
//	ERR000 - Unknown error

import (
	"fmt"
	"strings"
)

// UserMessage provides operator-facing error information.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

var kindMessages = map[Kind]UserMessage{
	KindSourceNotFound: {
		Message: "The source CSV could not be found",
		Action:  "Run the fetch step first or point PIPELINE_SOURCE at an existing file",
		Code:    "SRC001",
	},
	KindMalformedSource: {
		Message: "The source CSV could not be parsed",
		Action:  "Check that the file is readable and has consistent column counts and valid values in strict columns",
		Code:    "SRC002",
	},
	KindConnectionUnavailable: {
		Message: "Unable to connect to the database",
		Action:  "Check DATABASE_URL / DB_HOST and that the server is running",
		Code:    "DB001",
	},
	KindSchemaConflict: {
		Message: "The existing table does not match the expected schema",
		Action:  "Drop or rename the existing table, or load into a different DB_TABLE",
		Code:    "DB002",
	},
	KindWriteFailure: {
		Message: "The data could not be written",
		Action:  "If the table was loaded before, set DB_ON_CONFLICT=skip or empty the table",
		Code:    "DB003",
	},
	KindDownloadFailure: {
		Message: "The dataset could not be downloaded",
		Action:  "Check network access and KAGGLE_USERNAME / KAGGLE_KEY",
		Code:    "NET001",
	},
}

// errorPattern maps a case-insensitive substring of an untyped error.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is consulted only for errors that carry no Kind.
// First match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Start the run again when ready",
			Code:    "RUN001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The run timed out",
			Action:  "Raise PIPELINE_TIMEOUT or DATASET_TIMEOUT",
			Code:    "RUN002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for the underlying error",
	Code:    "ERR000",
}

// MapError converts an error to a UserMessage. Typed errors are mapped by
// Kind; anything else falls back to substring patterns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := kindMessages[KindOf(err)]; ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

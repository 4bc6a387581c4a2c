/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to CustomError templates, used to
standardize HTTP responses and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
// Codes without an explicit Status respond with HTTP 200 and rely on the
// business code; hard transport-level failures carry their HTTP status here.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large."},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Messaging Business Logic Errors
	ErrMessageContentMissing: {Code: ErrMessageContentMissing, Message: "Message has no content."},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long."},
	ErrMessageNotFound:       {Code: ErrMessageNotFound, Message: "Message not found.", Status: http.StatusNotFound},
	ErrRoomIDInvalid:         {Code: ErrRoomIDInvalid, Message: "Invalid chat room."},
	ErrMessagePersistFailed:  {Code: ErrMessagePersistFailed, Message: "Message could not be saved. Please try again."},

	// 3xxx: User, Identity, and Social Errors
	ErrUserNotFound:        {Code: ErrUserNotFound, Message: "Account not found.", Status: http.StatusNotFound},
	ErrUnauthorized:        {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrAlreadyBlocked:      {Code: ErrAlreadyBlocked, Message: "User is already blocked."},
	ErrNotBlocked:          {Code: ErrNotBlocked, Message: "User is not currently blocked.", Status: http.StatusNotFound},
	ErrUserBlocked:         {Code: ErrUserBlocked, Message: "You cannot message this user."},
	ErrInsufficientBalance: {Code: ErrInsufficientBalance, Message: "Insufficient balance."},

	// 4xxx: Media Errors
	ErrFileSizeTooLarge:  {Code: ErrFileSizeTooLarge, Message: "File is too large."},
	ErrFileTypeInvalid:   {Code: ErrFileTypeInvalid, Message: "File type is not allowed."},
	ErrFileStorageFailed: {Code: ErrFileStorageFailed, Message: "File upload failed. Please try again."},
	ErrFileNotFound:      {Code: ErrFileNotFound, Message: "File not found.", Status: http.StatusNotFound},

	// 5xxx: Internal System Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}

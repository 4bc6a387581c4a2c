/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system failures both internally
and in responses to clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON could not be decoded.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing content after valid JSON in the request body.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate exceeded the configured limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Messaging Business Logic Errors
const (
	// ErrMessageContentMissing indicates a message with neither text nor a media reference.
	ErrMessageContentMissing = 2101

	// ErrMessageContentTooLong indicates message text exceeding the maximum length.
	ErrMessageContentTooLong = 2102

	// ErrMessageNotFound indicates an operation on a message that does not exist.
	ErrMessageNotFound = 2103

	// ErrRoomIDInvalid indicates a missing or malformed room identifier.
	ErrRoomIDInvalid = 2104

	// ErrMessagePersistFailed indicates the store rejected a message write.
	ErrMessagePersistFailed = 2105
)

// 3xxx: User, Identity, and Social Errors
const (
	// ErrUserNotFound indicates the referenced user has no profile record.
	ErrUserNotFound = 3001

	// ErrUnauthorized indicates a missing or invalid identity token on a protected route.
	ErrUnauthorized = 3002

	// ErrAlreadyBlocked indicates a block record already exists for the pair.
	ErrAlreadyBlocked = 3101

	// ErrNotBlocked indicates an unblock for a pair that is not blocked.
	ErrNotBlocked = 3102

	// ErrUserBlocked indicates messaging between users with an active block.
	ErrUserBlocked = 3103

	// ErrInsufficientBalance indicates the wallet balance does not cover the unlock cost.
	ErrInsufficientBalance = 3201
)

// 4xxx: Media Errors
const (
	// ErrFileSizeTooLarge indicates an uploaded file above the size limit.
	ErrFileSizeTooLarge = 4001

	// ErrFileTypeInvalid indicates a file whose extension or MIME type is not allowed.
	ErrFileTypeInvalid = 4002

	// ErrFileStorageFailed indicates the storage backend rejected the upload or presign.
	ErrFileStorageFailed = 4003

	// ErrFileNotFound indicates the referenced object does not exist in storage.
	ErrFileNotFound = 4004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000
)

/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific business or system errors both internally within
the server and in communication with clients. Real-time events carry the same codes
inside roomError payloads so REST and WebSocket clients share one taxonomy.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1005

	// ErrInvalidUsername indicates that the username does not satisfy format rules.
	ErrInvalidUsername = 1006

	// ErrInvalidPassword indicates that the password does not satisfy length rules.
	ErrInvalidPassword = 1007
)

// 2xxx: Room and Race Business Logic Errors
const (
	// ErrRoomNotFound indicates that the referenced room does not exist.
	ErrRoomNotFound = 2101

	// ErrRoomFull indicates that the room has reached its participant capacity.
	ErrRoomFull = 2102

	// ErrRoomNotAccepting indicates that the room is no longer in the waiting state
	// and cannot accept new participants.
	ErrRoomNotAccepting = 2103

	// ErrAlreadyMember indicates that the user is already a participant of the room.
	ErrAlreadyMember = 2104

	// ErrNotCreator indicates that a non-creator attempted a creator-only action
	// (only the first participant may start the race).
	ErrNotCreator = 2201

	// ErrNotEnoughPlayers indicates that a race start was attempted with fewer
	// than two participants.
	ErrNotEnoughPlayers = 2202

	// ErrGameInProgress indicates that the race has already started or a countdown
	// is already pending for the room.
	ErrGameInProgress = 2203

	// ErrStartGameError indicates that the countdown completed but the room could
	// not transition to active due to a concurrent state change.
	ErrStartGameError = 2204
)

// 3xxx: Authentication, Session, and Connection Errors
const (
	// ErrAuthRequired indicates that no credential token was provided.
	ErrAuthRequired = 3001

	// ErrAuthExpired indicates that the provided credential token has expired.
	ErrAuthExpired = 3002

	// ErrAuthInvalid indicates that the provided credential token is malformed or
	// fails verification.
	ErrAuthInvalid = 3003

	// ErrCapacityExceeded indicates that the server has reached its global
	// concurrent connection ceiling.
	ErrCapacityExceeded = 3004

	// ErrDuplicateConnection indicates that the connection instance id is already
	// registered (e.g., a duplicated tab replaying the same handshake).
	ErrDuplicateConnection = 3005

	// ErrSessionReplaced indicates that the connection was terminated because the
	// same identity established a newer connection.
	ErrSessionReplaced = 3006

	// ErrInvalidCredentials indicates an incorrect email/password combination.
	ErrInvalidCredentials = 3101

	// ErrUserAlreadyExists indicates that the username or email is already taken.
	ErrUserAlreadyExists = 3102

	// ErrUserNotFound indicates that the referenced user account does not exist.
	ErrUserNotFound = 3103
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)

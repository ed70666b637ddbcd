package errs

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToGRPCStatus maps an error onto the canonical status codes from §7.
// Domain errors default to FailedPrecondition; callers that know the
// violation stems from malformed input should wrap with Validation
// instead so it maps to InvalidArgument.
func ToGRPCStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}

	kind := KindOf(err)
	var code codes.Code
	switch kind {
	case Validation:
		code = codes.InvalidArgument
	case NotFound, SchemaNotFound:
		code = codes.NotFound
	case AlreadyExists:
		code = codes.AlreadyExists
	case Conflict, VersionConflict, MaxVersionsExceeded:
		code = codes.Aborted
	case PermissionDenied:
		code = codes.PermissionDenied
	case Unauthenticated:
		code = codes.Unauthenticated
	case Domain:
		code = codes.FailedPrecondition
	case Database:
		code = codes.Unavailable
	case EventStore, Serialization:
		code = codes.Internal
	default:
		code = codes.Internal
	}

	return status.New(code, safeMessage(err))
}

// safeMessage returns the short, user-safe message for an *Error, or a
// generic fallback for anything else — never raw SQL or a stack trace.
func safeMessage(err error) string {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return e.Message
	}
	return "internal error"
}

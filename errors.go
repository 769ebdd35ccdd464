package odatabatch

import (
	"errors"
	"fmt"
)

// ErrorKind discriminates the failure categories a BatchReader can raise.
// A reader that fails always transitions to the Exception state, which is
// terminal: every subsequent Advance call fails with KindInvalidReaderState.
type ErrorKind string

const (
	KindMalformedFraming          ErrorKind = "MalformedFraming"
	KindInvalidHTTPVersion        ErrorKind = "InvalidHttpVersion"
	KindInvalidRequestLine        ErrorKind = "InvalidRequestLine"
	KindInvalidResponseLine       ErrorKind = "InvalidResponseLine"
	KindInvalidHTTPMethod         ErrorKind = "InvalidHttpMethod"
	KindQueryMethodInChangeset    ErrorKind = "QueryMethodInChangeset"
	KindMissingContentID          ErrorKind = "MissingContentId"
	KindDuplicateContentID        ErrorKind = "DuplicateContentId"
	KindNestedChangesetNotAllowed ErrorKind = "NestedChangesetNotAllowed"
	KindMissingRequiredProperty   ErrorKind = "MissingRequiredProperty"
	KindUnexpectedTopLevelProperty ErrorKind = "UnexpectedTopLevelProperty"
	KindSelfReference             ErrorKind = "SelfReference"
	KindSelfGroupReference        ErrorKind = "SelfGroupReference"
	KindMustReferenceGroup        ErrorKind = "MustReferenceGroup"
	KindForwardReferenceNotAllowed ErrorKind = "ForwardReferenceNotAllowed"
	KindUnresolvedContentID       ErrorKind = "UnresolvedContentId"
	KindInvalidReaderState        ErrorKind = "InvalidReaderState"
	KindQuotaExceeded             ErrorKind = "QuotaExceeded"
	KindStreamAborted             ErrorKind = "StreamAborted"
)

// ODataBatchError is the single error type the reader ever returns. Kind
// identifies the failure category for programmatic handling; Err, when
// present, wraps the underlying cause (an I/O error or malformed JSON).
type ODataBatchError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ODataBatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("odatabatch: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("odatabatch: %s: %s", e.Kind, e.Message)
}

func (e *ODataBatchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *ODataBatchError with the same Kind,
// so callers can test for a category with errors.Is(err, odatabatch.ErrQuotaExceeded)
// regardless of the specific message or wrapped cause.
func (e *ODataBatchError) Is(target error) bool {
	t, ok := target.(*ODataBatchError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, format string, args ...any) *ODataBatchError {
	return &ODataBatchError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, cause error, format string, args ...any) *ODataBatchError {
	return &ODataBatchError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Sentinel errors, one per Kind, usable with errors.Is to classify a failure
// without inspecting its message:
//
//	if errors.Is(err, odatabatch.ErrQuotaExceeded) { ... }
var (
	ErrMalformedFraming           = &ODataBatchError{Kind: KindMalformedFraming}
	ErrInvalidHTTPVersion         = &ODataBatchError{Kind: KindInvalidHTTPVersion}
	ErrInvalidRequestLine         = &ODataBatchError{Kind: KindInvalidRequestLine}
	ErrInvalidResponseLine        = &ODataBatchError{Kind: KindInvalidResponseLine}
	ErrInvalidHTTPMethod          = &ODataBatchError{Kind: KindInvalidHTTPMethod}
	ErrQueryMethodInChangeset     = &ODataBatchError{Kind: KindQueryMethodInChangeset}
	ErrMissingContentID           = &ODataBatchError{Kind: KindMissingContentID}
	ErrDuplicateContentID         = &ODataBatchError{Kind: KindDuplicateContentID}
	ErrNestedChangesetNotAllowed  = &ODataBatchError{Kind: KindNestedChangesetNotAllowed}
	ErrMissingRequiredProperty    = &ODataBatchError{Kind: KindMissingRequiredProperty}
	ErrUnexpectedTopLevelProperty = &ODataBatchError{Kind: KindUnexpectedTopLevelProperty}
	ErrSelfReference              = &ODataBatchError{Kind: KindSelfReference}
	ErrSelfGroupReference         = &ODataBatchError{Kind: KindSelfGroupReference}
	ErrMustReferenceGroup         = &ODataBatchError{Kind: KindMustReferenceGroup}
	ErrForwardReferenceNotAllowed = &ODataBatchError{Kind: KindForwardReferenceNotAllowed}
	ErrUnresolvedContentID        = &ODataBatchError{Kind: KindUnresolvedContentID}
	ErrInvalidReaderState         = &ODataBatchError{Kind: KindInvalidReaderState}
	ErrQuotaExceeded              = &ODataBatchError{Kind: KindQuotaExceeded}
	ErrStreamAborted              = &ODataBatchError{Kind: KindStreamAborted}
)

// AsBatchError unwraps err into an *ODataBatchError, mirroring errors.As for
// callers that want the Kind and Message without a type switch.
func AsBatchError(err error) (*ODataBatchError, bool) {
	var be *ODataBatchError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

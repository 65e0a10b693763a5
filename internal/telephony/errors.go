package telephony

import "errors"

var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrSlotID             = errors.New("slot id out of range")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrIllegalAPIUse      = errors.New("non-system caller used a system api")
	ErrNotFound           = errors.New("registration not found")
	ErrServiceUnavailable = errors.New("state registry service unavailable")
	ErrInternal           = errors.New("state registry internal error")
)

// Code is the result code carried in RPC replies.
type Code int32

const (
	CodeSuccess            Code = 0
	CodePermissionDenied   Code = 201
	CodeIllegalAPIUse      Code = 202
	CodeInvalidArgument    Code = 401
	CodeSlotID             Code = 8300001
	CodeServiceUnavailable Code = 8300002
	CodeInternal           Code = 8300003
	CodeNotFound           Code = 8300100
)

var codeErrors = []struct {
	code Code
	err  error
}{
	{CodePermissionDenied, ErrPermissionDenied},
	{CodeIllegalAPIUse, ErrIllegalAPIUse},
	{CodeInvalidArgument, ErrInvalidArgument},
	{CodeSlotID, ErrSlotID},
	{CodeServiceUnavailable, ErrServiceUnavailable},
	{CodeNotFound, ErrNotFound},
	{CodeInternal, ErrInternal},
}

// CodeOf maps err to its result code. Errors outside the taxonomy map to
// CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return CodeSuccess
	}
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return CodeInternal
}

// Err returns the sentinel error for c, or nil for CodeSuccess.
func (c Code) Err() error {
	if c == CodeSuccess {
		return nil
	}
	for _, ce := range codeErrors {
		if ce.code == c {
			return ce.err
		}
	}
	return ErrInternal
}

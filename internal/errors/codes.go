package errors

// Code identifies the kind of rejection.
type Code string

// Error codes
const (
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeInvalidName       Code = "INVALID_NAME"
	CodeNameTaken         Code = "NAME_TAKEN"
	CodeNotRegistered     Code = "NOT_REGISTERED"
	CodeInvalidOwner      Code = "INVALID_OWNER"
	CodeAlreadyGranted    Code = "ALREADY_GRANTED"
	CodeLengthMismatch    Code = "LENGTH_MISMATCH"
	CodeNotOwner          Code = "NOT_OWNER"
	CodeNotFound          Code = "NOT_FOUND"
	CodeSelfBattle        Code = "SELF_BATTLE"
	CodeNotReady          Code = "NOT_READY"
	CodeAlreadyReady      Code = "ALREADY_READY"
	CodeInBattle          Code = "IN_BATTLE"
	CodeNoBattle          Code = "NO_BATTLE"
	CodeAlreadyChallenged Code = "ALREADY_CHALLENGED"
	CodeNoChallenge       Code = "NO_CHALLENGE"
	CodeNotAcceptable     Code = "NOT_ACCEPTABLE"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInternal          Code = "INTERNAL"
)

// String returns the string representation of the code
func (c Code) String() string {
	return string(c)
}

// Sentinels for errors.Is comparisons. Only the code is compared.
var (
	ErrAlreadyRegistered = New(CodeAlreadyRegistered, "already registered")
	ErrInvalidName       = New(CodeInvalidName, "invalid name")
	ErrNameTaken         = New(CodeNameTaken, "name taken")
	ErrNotRegistered     = New(CodeNotRegistered, "not registered")
	ErrInvalidOwner      = New(CodeInvalidOwner, "invalid owner")
	ErrAlreadyGranted    = New(CodeAlreadyGranted, "already granted")
	ErrLengthMismatch    = New(CodeLengthMismatch, "length mismatch")
	ErrNotOwner          = New(CodeNotOwner, "not owner")
	ErrNotFound          = New(CodeNotFound, "not found")
	ErrSelfBattle        = New(CodeSelfBattle, "self battle")
	ErrNotReady          = New(CodeNotReady, "not ready")
	ErrAlreadyReady      = New(CodeAlreadyReady, "already ready")
	ErrInBattle          = New(CodeInBattle, "in battle")
	ErrNoBattle          = New(CodeNoBattle, "no battle")
	ErrAlreadyChallenged = New(CodeAlreadyChallenged, "already challenged")
	ErrNoChallenge       = New(CodeNoChallenge, "no challenge")
	ErrNotAcceptable     = New(CodeNotAcceptable, "not acceptable")
	ErrUnauthorized      = New(CodeUnauthorized, "unauthorized")
	ErrInvalidArgument   = New(CodeInvalidArgument, "invalid argument")
)

// Package errors defines the coded errors returned by game transactions.
//
// Every rejection carries a Code. Two errors match under errors.Is when
// their codes are equal, so callers can test against the exported sentinels
// even after the error has been wrapped:
//
//	if errors.Is(err, errors.ErrNotOwner) { ... }
package errors

package services

import (
	"errors"
	"fmt"

	"github.com/franciscosanchezn/gin-recipes-api/internal/validation"
	"gorm.io/gorm"
)

// Kind classifies a rejected operation
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
	KindPermission Kind = "permission"
)

// Messages returned to clients for the rules of the recipe and follow relations
const (
	MsgNoIngredients        = "a recipe requires at least one ingredient"
	MsgDuplicateIngredients = "duplicate ingredients are not allowed"
	MsgSelfFollow           = "cannot follow self"
	MsgAlreadySubscribed    = "already subscribed"
	MsgNotSubscribed        = "not subscribed"
	MsgAuthRequired         = "authentication required"
)

// Error is a deterministic rejection of an operation. It never leaves
// partial changes behind.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is
var (
	ErrValidation = &Error{Kind: KindValidation, Message: "validation error"}
	ErrConflict   = &Error{Kind: KindConflict, Message: "conflict"}
	ErrNotFound   = &Error{Kind: KindNotFound, Message: "not found"}
	ErrPermission = &Error{Kind: KindPermission, Message: "permission denied"}
)

// ErrInvalidCredentials is returned by Authenticate for unknown emails and wrong passwords alike
var ErrInvalidCredentials = errors.New("invalid credentials")

// Validation reports invalid input; details maps a field to its message
func Validation(msg string, details map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

// Conflict reports a duplicate or missing relation
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NotFound reports a missing resource
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Permission reports a caller that may not perform the operation
func Permission(msg string) *Error {
	return &Error{Kind: KindPermission, Message: msg}
}

// invalid converts validator output into a validation error
func invalid(err error) error {
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		return Validation("invalid input: "+fieldErrs.Error(), fieldErrs)
	}
	return err
}

// lookupError translates a missing row into ErrNotFound
func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(what + " not found")
	}
	return fmt.Errorf("load %s: %w", what, err)
}

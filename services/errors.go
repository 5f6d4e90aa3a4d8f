package services

import (
	"errors"
	"fmt"

	"backoffice/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInvoiceExists     = errors.New("invoice already exists for this order")
	ErrRequestExpired    = errors.New("request order has expired")
	ErrUnauthorized      = errors.New("unauthorized")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// notFound turns a repository miss into the service sentinel, naming what was looked up.
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %v", ErrNotFound, what, id)
	}
	return err
}

func parseID(raw, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, invalid("invalid %s id %q", what, raw)
	}
	return id, nil
}

// Package service implements Booksy's business logic on top of the store.
//
// Services return *errors.Error values for anything a client caused (not
// found, validation, permissions) and wrapped plain errors for failures of
// the server itself.
package service

import (
	"errors"
	"log/slog"

	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
	"github.com/booksy/booksy-server/internal/sse"
	"github.com/booksy/booksy-server/internal/store"
	"github.com/booksy/booksy-server/internal/validation"
)

var validate = validation.New()

// EventEmitter publishes changes to connected clients.
type EventEmitter interface {
	Emit(event sse.Event)
}

type noopEmitter struct{}

func (noopEmitter) Emit(sse.Event) {}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return logger
}

// notFound converts a store not-found error into a domain error with msg and
// passes every other error through.
func notFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFound("%s", msg).WithCause(err)
	}
	return err
}

// requireAdmin returns a forbidden error unless user is an admin.
func requireAdmin(user *domain.User) error {
	if user == nil || !user.IsAdmin() {
		return domainerrors.Forbidden("admin access required")
	}
	return nil
}

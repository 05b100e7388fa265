// Package sse streams library and reader changes to connected clients as
// Server-Sent Events.
package sse

import (
	"time"

	"github.com/booksy/booksy-server/internal/domain"
)

// EventType represents the type of an Event.
type EventType string

const (
	// EventBookCreated is sent when a book enters the catalog.
	EventBookCreated EventType = "book.created"
	// EventBookUpdated is sent when metadata, cover or visibility change.
	EventBookUpdated EventType = "book.updated"
	// EventBookDeleted is sent when a book is removed.
	EventBookDeleted EventType = "book.deleted"

	// EventUserPending is sent to admins when someone registers.
	EventUserPending EventType = "user.pending"
	// EventUserApproved is sent to admins when a pending user is approved.
	EventUserApproved EventType = "user.approved"

	// EventReaderProgress carries the new state of a reader session to the
	// other clients of the same user.
	EventReaderProgress EventType = "reader.progress"

	// EventHeartbeat keeps idle connections open.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message on the stream.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Type      EventType `json:"type"`

	// UserID limits delivery to the clients of one user.
	UserID string `json:"-"`
	// AdminOnly limits delivery to admin clients.
	AdminOnly bool `json:"-"`
}

// BookEventData is the payload of book events.
type BookEventData struct {
	BookID string `json:"book_id"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Active bool   `json:"active"`
}

// UserEventData is the payload of user events.
type UserEventData struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

func newEvent(t EventType, data any) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

func bookData(book *domain.Book) BookEventData {
	return BookEventData{BookID: book.ID, Title: book.Title, Author: book.Author, Active: book.Active}
}

// NewBookCreatedEvent creates a book.created event. Hidden books are only
// announced to admins.
func NewBookCreatedEvent(book *domain.Book) Event {
	e := newEvent(EventBookCreated, bookData(book))
	e.AdminOnly = !book.Active
	return e
}

// NewBookUpdatedEvent creates a book.updated event. Members are told when a
// book is hidden so they can drop it, but not about edits to hidden books.
func NewBookUpdatedEvent(book *domain.Book, wasActive bool) Event {
	e := newEvent(EventBookUpdated, bookData(book))
	e.AdminOnly = !book.Active && !wasActive
	return e
}

// NewBookDeletedEvent creates a book.deleted event.
func NewBookDeletedEvent(bookID string) Event {
	return newEvent(EventBookDeleted, BookEventData{BookID: bookID})
}

// NewUserPendingEvent creates an admin-only user.pending event.
func NewUserPendingEvent(user *domain.User) Event {
	e := newEvent(EventUserPending, UserEventData{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName})
	e.AdminOnly = true
	return e
}

// NewUserApprovedEvent creates an admin-only user.approved event.
func NewUserApprovedEvent(user *domain.User) Event {
	e := newEvent(EventUserApproved, UserEventData{UserID: user.ID, Email: user.Email, DisplayName: user.DisplayName})
	e.AdminOnly = true
	return e
}

// NewReaderProgressEvent creates a reader.progress event for userID's clients.
func NewReaderProgressEvent(userID string, session any) Event {
	e := newEvent(EventReaderProgress, session)
	e.UserID = userID
	return e
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, nil)
}

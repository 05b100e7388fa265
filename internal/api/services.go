package api

import (
	"github.com/booksy/booksy-server/internal/service"
	"github.com/booksy/booksy-server/internal/sse"
)

// Services groups the business logic services used by the API server.
type Services struct {
	Instance *service.InstanceService
	Auth     *service.AuthService
	Session  *service.SessionService
	User     *service.UserService
	Book     *service.BookService
	Reader   *service.ReaderService
	Search   *service.SearchService

	// Events enables GET /api/v1/events when set.
	Events *sse.Manager
}

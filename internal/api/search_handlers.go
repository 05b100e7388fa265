package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksy/booksy-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search library",
		Description: "Full-text search over titles, authors and descriptions",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching the library.
type SearchInput struct {
	Query       string `query:"q" maxLength:"200" doc:"Search query; empty matches every book"`
	Limit       int    `query:"limit" minimum:"0" maximum:"100" doc:"Max results (default 20)"`
	Offset      int    `query:"offset" minimum:"0" doc:"Pagination offset"`
	Sort        string `query:"sort" enum:"relevance,title,author,recent" default:"relevance" doc:"Sort field"`
	Order       string `query:"order" enum:"asc,desc" default:"desc" doc:"Sort order"`
	Language    string `query:"language" maxLength:"35" doc:"Only books in this language"`
	ContentOnly bool   `query:"readable" doc:"Only books that can be opened in the reader"`
	Facets      bool   `query:"facets" doc:"Include facets in response"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body *search.SearchResult
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	params := search.DefaultSearchParams()
	params.Query = input.Query
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	params.Offset = input.Offset
	if input.Sort != "" {
		params.SortBy = input.Sort
	}
	if input.Order != "" {
		params.SortOrder = input.Order
	}
	params.Language = input.Language
	params.ContentOnly = input.ContentOnly
	params.IncludeFacets = input.Facets

	s.logger.Debug("Search request received",
		"query", params.Query,
		"limit", params.Limit,
		"user_id", user.ID,
	)

	result, err := s.services.Search.Search(ctx, user, params)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}

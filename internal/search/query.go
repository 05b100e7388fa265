package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/booksy/booksy-server/internal/ebook"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string

	// Filters
	ActiveOnly  bool   // hide books members cannot see
	ContentOnly bool   // only books that can be opened in the reader
	Language    string // exact language tag

	// Pagination
	Limit  int
	Offset int

	SortBy    string // "relevance", "title", "author", "recent"
	SortOrder string // "asc", "desc"

	IncludeFacets bool
	Highlight     bool
}

// DefaultSearchParams returns the defaults used by the API.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		Highlight:     true,
	}
}

// SearchResult is one page of hits.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitzero"`
}

// SearchHit is a single matching book.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Title      string            `json:"title"`
	Author     string            `json:"author,omitempty"`
	Language   string            `json:"language,omitempty"`
	Active     bool              `json:"active"`
	TotalPages int               `json:"total_pages,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Languages []FacetCount `json:"languages,omitempty"`
}

// FacetCount is a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)

	if params.IncludeFacets {
		req.AddFacet("language", bleve.NewFacetRequest("language", 20))
	}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("author")
	}
	req.Fields = []string{"title", "author", "language", "active", "total_pages"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}

	for _, hit := range res.Hits {
		h := SearchHit{ID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["title"].(string); ok {
			h.Title = v
		}
		if v, ok := hit.Fields["author"].(string); ok {
			h.Author = v
		}
		if v, ok := hit.Fields["language"].(string); ok {
			h.Language = v
		}
		if v, ok := hit.Fields["active"].(bool); ok {
			h.Active = v
		}
		if v, ok := hit.Fields["total_pages"].(float64); ok {
			h.TotalPages = int(v)
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}

	if params.IncludeFacets {
		if f, ok := res.Facets["language"]; ok && f.Terms != nil {
			for _, term := range f.Terms.Terms() {
				result.Facets.Languages = append(result.Facets.Languages, FacetCount{Value: term.Term, Count: term.Count})
			}
		}
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params. Text clauses are
// ORed together, filters are ANDed onto the result.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(ebook.FoldAccents(params.Query)); q != "" {
		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("title")
		titleMatch.SetBoost(3.0)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("author")
		authorMatch.SetBoost(2.0)

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")
		descMatch.SetBoost(0.5)

		publisherMatch := bleve.NewMatchQuery(q)
		publisherMatch.SetField("publisher")
		publisherMatch.SetBoost(0.5)

		isbnMatch := bleve.NewTermQuery(strings.ReplaceAll(q, "-", ""))
		isbnMatch.SetField("isbn")
		isbnMatch.SetBoost(5.0)

		// Typo tolerance on titles
		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)

		text := []query.Query{titleMatch, authorMatch, descMatch, publisherMatch, isbnMatch, fuzzy}

		// Autocomplete on the last word being typed
		if len(q) >= 2 {
			fields := strings.Fields(strings.ToLower(q))
			prefix := bleve.NewPrefixQuery(fields[len(fields)-1])
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if params.ActiveOnly {
		active := bleve.NewBoolFieldQuery(true)
		active.SetField("active")
		queries = append(queries, active)
	}
	if params.ContentOnly {
		content := bleve.NewBoolFieldQuery(true)
		content.SetField("has_content")
		queries = append(queries, content)
	}
	if params.Language != "" {
		lang := bleve.NewTermQuery(params.Language)
		lang.SetField("language")
		queries = append(queries, lang)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// addSorting configures sort order. Relevance is the default.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	desc := params.SortOrder == "desc"
	switch params.SortBy {
	case "title":
		req.SortBy([]string{order("title", desc)})
	case "author":
		req.SortBy([]string{order("author", desc), order("title", desc)})
	case "recent":
		req.SortBy([]string{order("created_at", params.SortOrder != "asc")})
	default:
		req.SortBy([]string{"-_score"})
	}
}

func order(field string, desc bool) string {
	if desc {
		return "-" + field
	}
	return field
}

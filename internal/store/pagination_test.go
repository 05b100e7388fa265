package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationParams_Normalize(t *testing.T) {
	tests := []struct {
		name          string
		input         PaginationParams
		expectedLimit int
	}{
		{name: "valid limit", input: PaginationParams{Limit: 20}, expectedLimit: 20},
		{name: "zero limit defaults", input: PaginationParams{}, expectedLimit: DefaultPageLimit},
		{name: "negative limit defaults", input: PaginationParams{Limit: -10}, expectedLimit: DefaultPageLimit},
		{name: "large limit is capped", input: PaginationParams{Limit: 5000}, expectedLimit: MaxPageLimit},
		{name: "max limit stays", input: PaginationParams{Limit: MaxPageLimit}, expectedLimit: MaxPageLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.input
			params.Normalize()
			assert.Equal(t, tt.expectedLimit, params.Limit)
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	assert.Empty(t, EncodeCursor(""))

	cursor := EncodeCursor("book-V1StGXR8_Z5jdHi6B-myT")
	assert.NotContains(t, cursor, "=")

	key, err := DecodeCursor(cursor)
	require.NoError(t, err)
	assert.Equal(t, "book-V1StGXR8_Z5jdHi6B-myT", key)

	key, err = DecodeCursor("")
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("not base64!")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPaginate(t *testing.T) {
	key := func(s string) string { return s }

	page := Paginate([]string{"a", "b", "c"}, 10, 2, key)
	assert.Equal(t, []string{"a", "b"}, page.Items)
	assert.True(t, page.HasMore)
	assert.Equal(t, 10, page.Total)
	next, err := DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, "b", next)

	page = Paginate([]string{"a", "b"}, 2, 2, key)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)

	empty := Paginate[string](nil, 0, 5, key)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_StaticOnly(t *testing.T) {
	segments, err := Parse("/users/active")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, Segment{Kind: Static, Value: "/users/active"}, segments[0])
}

func TestParse_Parameters(t *testing.T) {
	segments, err := Parse("/users/{id:int}/posts/{slug}")
	require.NoError(t, err)

	assert.Equal(t, []Segment{
		{Kind: Static, Value: "/users/"},
		{Kind: Parameter, Value: "id", Type: "int"},
		{Kind: Static, Value: "/posts/"},
		{Kind: Parameter, Value: "slug"},
	}, segments)
}

func TestParse_Wildcard(t *testing.T) {
	segments, err := Parse("/files/{*}")
	require.NoError(t, err)

	assert.Equal(t, []Segment{
		{Kind: Static, Value: "/files/"},
		{Kind: Wildcard, Value: "*"},
	}, segments)
}

func TestParse_ParameterAtStart(t *testing.T) {
	segments, err := Parse("{version}/status")
	require.NoError(t, err)

	assert.Equal(t, []Segment{
		{Kind: Parameter, Value: "version"},
		{Kind: Static, Value: "/status"},
	}, segments)
}

func TestParse_UUIDType(t *testing.T) {
	segments, err := Parse("/orders/{id:uuid}")
	require.NoError(t, err)
	assert.Equal(t, Segment{Kind: Parameter, Value: "id", Type: "uuid"}, segments[1])
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse("")
	assert.Error(t, err)
}

func TestParse_UnclosedBrace(t *testing.T) {
	_, err := Parse("/users/{id")
	assert.Error(t, err)
}

func TestParse_MergesAdjacentStatics(t *testing.T) {
	// Identifiers and punctuation lex as separate tokens but collapse into
	// one static segment.
	segments, err := Parse("/api/v2/users-list")
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "/api/v2/users-list", segments[0].Value)
}

func TestParamNames(t *testing.T) {
	segments, err := Parse("/a/{x}/b/{y:int}/{*}")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ParamNames(segments))
}

func TestExpand(t *testing.T) {
	out, err := Expand("/users/{id}/posts/{slug}", map[string]any{
		"id":   42,
		"slug": "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "/users/42/posts/hello", out)
}

func TestExpand_FloatValueRendersWithoutDecimals(t *testing.T) {
	out, err := Expand("/users/{id}", map[string]any{"id": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, "/users/42", out)
}

func TestExpand_MissingValue(t *testing.T) {
	_, err := Expand("/users/{id}", map[string]any{})
	assert.Error(t, err)
}

func TestExpand_WildcardRejected(t *testing.T) {
	_, err := Expand("/files/{*}", map[string]any{})
	assert.Error(t, err)
}

func TestExpand_StaticTemplate(t *testing.T) {
	out, err := Expand("/login", nil)
	require.NoError(t, err)
	assert.Equal(t, "/login", out)
}

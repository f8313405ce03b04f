package relay

import (
	"errors"
	"mime/multipart"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_Body(t *testing.T) {
	c := newFakeContext().withBody(map[string]any{"name": "ada", "age": 36})

	value, err := Extract(c, Body())
	require.NoError(t, err)

	body, ok := value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada", body["name"])
	assert.Equal(t, float64(36), body["age"])
}

func TestExtract_Body_ParsedOnce(t *testing.T) {
	c := newFakeContext().withBody(map[string]any{"name": "ada"})

	first, err := Extract(c, Body())
	require.NoError(t, err)

	// Drop the raw body; the cached parse must still be served.
	c.body = nil
	second, err := Extract(c, Body())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_Body_Empty(t *testing.T) {
	value, err := Extract(newFakeContext(), Body())
	assert.NoError(t, err)
	assert.Nil(t, value)
}

func TestExtract_Body_Malformed(t *testing.T) {
	c := newFakeContext()
	c.body = []byte("{not json")

	_, err := Extract(c, Body())
	var httpErr *HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 400, httpErr.StatusCode)
}

type signupRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func TestExtract_Body_Typed(t *testing.T) {
	c := newFakeContext().withBody(map[string]any{"name": "ada", "email": "ada@example.com"})

	value, err := Extract(c, Body(
		WithBodyType(func() any { return &signupRequest{} }),
		WithValidation(),
	))
	require.NoError(t, err)

	req, ok := value.(*signupRequest)
	require.True(t, ok)
	assert.Equal(t, "ada", req.Name)
}

func TestExtract_Body_TypedValidationFailure(t *testing.T) {
	c := newFakeContext().withBody(map[string]any{"name": "ada", "email": "not-an-email"})

	_, err := Extract(c, Body(
		WithBodyType(func() any { return &signupRequest{} }),
		WithValidation(),
	))
	var httpErr *HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 422, httpErr.StatusCode)
	assert.NotNil(t, httpErr.Details)
}

func TestExtract_BodyField(t *testing.T) {
	c := newFakeContext().withBody(map[string]any{"name": "ada", "role": "admin"})

	value, err := Extract(c, BodyField("role"))
	require.NoError(t, err)
	assert.Equal(t, "admin", value)

	missing, err := Extract(c, BodyField("nope"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestExtract_BodyField_NonObjectBody(t *testing.T) {
	c := newFakeContext().withBody([]string{"a", "b"})

	value, err := Extract(c, BodyField("name"))
	assert.NoError(t, err)
	assert.Nil(t, value)
}

func TestExtract_PathParam(t *testing.T) {
	c := newFakeContext()
	c.params["id"] = "42"

	value, err := Extract(c, PathParam("id"))
	require.NoError(t, err)
	assert.Equal(t, "42", value)

	value, err = Extract(c, PathParam("id", WithType("int")))
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestExtract_PathParam_Conversions(t *testing.T) {
	id := uuid.New()
	c := newFakeContext()
	c.params["count"] = "7"
	c.params["big"] = "9000000000"
	c.params["ratio"] = "0.5"
	c.params["flag"] = "true"
	c.params["id"] = id.String()

	cases := []struct {
		name     string
		typeName string
		want     any
	}{
		{"count", "int", 7},
		{"big", "int64", int64(9000000000)},
		{"ratio", "float64", 0.5},
		{"flag", "bool", true},
		{"id", "uuid", id},
	}
	for _, tc := range cases {
		value, err := Extract(c, PathParam(tc.name, WithType(tc.typeName)))
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, value, tc.name)
	}
}

func TestExtract_PathParam_InvalidConversion(t *testing.T) {
	c := newFakeContext()
	c.params["id"] = "not-a-number"

	_, err := Extract(c, PathParam("id", WithType("int")))
	var httpErr *HttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 400, httpErr.StatusCode)
}

func TestExtract_PathParam_Absent(t *testing.T) {
	value, err := Extract(newFakeContext(), PathParam("id", WithType("int")))
	assert.NoError(t, err)
	assert.Nil(t, value)
}

func TestExtract_PathParams(t *testing.T) {
	c := newFakeContext()
	c.params["a"] = "1"
	c.params["b"] = "2"

	value, err := Extract(c, PathParams())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, value)
}

func TestExtract_Query(t *testing.T) {
	c := newFakeContext()
	c.query.Set("page", "3")

	value, err := Extract(c, Query("page", WithType("int")))
	require.NoError(t, err)
	assert.Equal(t, 3, value)

	absent, err := Extract(c, Query("missing"))
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestExtract_Queries(t *testing.T) {
	c := newFakeContext()
	c.query.Add("tag", "a")
	c.query.Add("tag", "b")
	c.query.Set("page", "2")

	value, err := Extract(c, Queries())
	require.NoError(t, err)

	q, ok := value.(QueryMap)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, q.GetAll("tag"))
	assert.Equal(t, 2, q.GetInt("page"))
}

func TestExtract_Session(t *testing.T) {
	c := newFakeContext()
	SetSession(c, map[string]any{"user": "ada"})

	value, err := Extract(c, Session())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "ada"}, value)

	field, err := Extract(c, SessionField("user"))
	require.NoError(t, err)
	assert.Equal(t, "ada", field)
}

func TestExtract_Session_Absent(t *testing.T) {
	c := newFakeContext()

	value, err := Extract(c, Session())
	assert.NoError(t, err)
	assert.Nil(t, value)

	field, err := Extract(c, SessionField("user"))
	assert.NoError(t, err)
	assert.Nil(t, field)
}

func TestExtract_State(t *testing.T) {
	c := newFakeContext()
	c.Set("trace", "abc")

	value, err := Extract(c, State("trace"))
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	bag, err := Extract(c, State(""))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"trace": "abc"}, bag)
}

func TestExtract_Header(t *testing.T) {
	c := newFakeContext()
	c.headers.Set("X-Api-Key", "secret")

	value, err := Extract(c, Header("x-api-key"))
	require.NoError(t, err)
	assert.Equal(t, "secret", value)

	absent, err := Extract(c, Header("X-Missing"))
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestExtract_Cookie(t *testing.T) {
	c := newFakeContext()
	c.cookies["sid"] = "xyz"

	value, err := Extract(c, Cookie("sid"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", value)

	absent, err := Extract(c, Cookie("other"))
	require.NoError(t, err)
	assert.Nil(t, absent)

	all, err := Extract(c, Cookies())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sid": "xyz"}, all)
}

func TestExtract_File_FromUploadStash(t *testing.T) {
	fh := &multipart.FileHeader{Filename: "report.pdf", Size: 128}
	c := newFakeContext()
	c.Set(fileKey("document"), fh)

	value, err := Extract(c, File("document"))
	require.NoError(t, err)
	assert.Same(t, fh, value)
}

func TestExtract_File_FromForm(t *testing.T) {
	fh := &multipart.FileHeader{Filename: "report.pdf"}
	c := newFakeContext()
	c.files["document"] = []*multipart.FileHeader{fh}

	value, err := Extract(c, File("document"))
	require.NoError(t, err)
	assert.Same(t, fh, value)
}

func TestExtract_File_Absent(t *testing.T) {
	value, err := Extract(newFakeContext(), File("document"))
	assert.NoError(t, err)
	assert.Nil(t, value)
}

func TestExtract_Files(t *testing.T) {
	fhs := []*multipart.FileHeader{{Filename: "a"}, {Filename: "b"}}
	c := newFakeContext()
	c.files["documents"] = fhs

	value, err := Extract(c, Files("documents"))
	require.NoError(t, err)
	assert.Equal(t, fhs, value)
}

func TestExtract_Transform(t *testing.T) {
	c := newFakeContext()
	c.query.Set("name", "ada")

	value, err := Extract(c, Query("name", WithTransform(func(v any) (any, error) {
		return v.(string) + "!", nil
	})))
	require.NoError(t, err)
	assert.Equal(t, "ada!", value)
}

func TestExtract_TransformError(t *testing.T) {
	c := newFakeContext()
	c.query.Set("name", "ada")

	_, err := Extract(c, Query("name", WithTransform(func(any) (any, error) {
		return nil, errors.New("boom")
	})))
	assert.Error(t, err)
}

func TestExtract_TransformSkippedForAbsentValue(t *testing.T) {
	called := false
	value, err := Extract(newFakeContext(), Query("name", WithTransform(func(v any) (any, error) {
		called = true
		return v, nil
	})))
	assert.NoError(t, err)
	assert.Nil(t, value)
	assert.False(t, called)
}

func TestExtract_UnknownKind(t *testing.T) {
	_, err := Extract(newFakeContext(), Param{Kind: ParamKind(99)})
	assert.Error(t, err)
}

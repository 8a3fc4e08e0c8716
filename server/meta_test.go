package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

func TestValidateId(t *testing.T) {
	assert.NoError(t, validateId("id", "sentinel-2-l2a"))
	assert.NoError(t, validateId("id", "S2B_MSIL2A_20230801.v1"))

	assert.Error(t, validateId("id", ""))
	assert.Error(t, validateId("id", "has space"))
	assert.Error(t, validateId("id", "has/slash"))
	assert.Error(t, validateId("id", "emóji"))

	long := make([]byte, 513)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, validateId("id", string(long)))
}

func TestParseBBox(t *testing.T) {
	bbox, err := parseBBox("13,52,14,53")
	assert.NoError(t, err)
	assert.Equal(t, []float64{13, 52, 14, 53}, bbox)

	// 3D box flattens to its horizontal extent
	bbox, err = parseBBox("13,52,0,14,53,100")
	assert.NoError(t, err)
	assert.Equal(t, []float64{13, 52, 14, 53}, bbox)

	for _, raw := range []string{"13,52,14", "13,52,14,53,0", "13,abc,14,53", "13,53,14,52"} {
		_, err = parseBBox(raw)
		assert.True(t, api.IsKind(err, api.KindInvalidFilterExpression), "bbox %q", raw)
	}
}

func TestValidateDatetime(t *testing.T) {
	for _, raw := range []string{
		"2023-08-01T10:00:00Z",
		"2023-08-01T10:00:00+02:00",
		"2023-08-01T00:00:00Z/2023-08-31T23:59:59Z",
		"../2023-08-31T23:59:59Z",
		"2023-08-01T00:00:00Z/..",
	} {
		assert.NoError(t, validateDatetime(raw), "datetime %q", raw)
	}

	for _, raw := range []string{
		"..",
		"../..",
		"not-a-date",
		"2023-08-01",
		"2023-08-01T00:00:00Z/oops",
	} {
		err := validateDatetime(raw)
		assert.True(t, api.IsKind(err, api.KindInvalidFilterExpression), "datetime %q", raw)
	}
}

func TestETag(t *testing.T) {
	type payload struct {
		B int    `json:"b"`
		A string `json:"a"`
	}

	// equal content fingerprints equal, regardless of input representation
	e1 := etagOf(&payload{A: "x", B: 1})
	e2 := etagOf(map[string]interface{}{"a": "x", "b": 1})
	assert.Equal(t, e1, e2)

	e3 := etagOf(&payload{A: "x", B: 2})
	assert.NotEqual(t, e1, e3)

	assert.True(t, len(e1) > 2)
	assert.Equal(t, byte('"'), e1[0])
}

func TestCheckPrecondition(t *testing.T) {
	current := `"abc123"`

	assert.NoError(t, checkPrecondition("", current))
	assert.NoError(t, checkPrecondition("*", current))
	assert.NoError(t, checkPrecondition(current, current))
	assert.NoError(t, checkPrecondition(`W/"abc123"`, current))
	assert.NoError(t, checkPrecondition(`"stale", "abc123"`, current))

	err := checkPrecondition(`"stale"`, current)
	assert.True(t, api.IsKind(err, api.KindPreconditionFailed))
}

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayloadText(t *testing.T) {
	p := DecodePayload([]byte(`{"type":1,"content":"hello"}`))
	assert.Equal(t, PayloadText, p.Type)
	assert.Equal(t, "hello", p.Content)
}

func TestDecodePayloadBareString(t *testing.T) {
	p := DecodePayload([]byte(`"just text"`))
	assert.Equal(t, PayloadText, p.Type)
	assert.Equal(t, "just text", p.Content)
}

func TestDecodePayloadEmpty(t *testing.T) {
	p := DecodePayload(nil)
	assert.Equal(t, PayloadText, p.Type)
	assert.Empty(t, p.Content)
}

func TestDecodePayloadMalformedFallsBackToRaw(t *testing.T) {
	p := DecodePayload([]byte(`{not json`))
	assert.Equal(t, PayloadText, p.Type)
	assert.Equal(t, `{not json`, p.Content)
}

func TestDecodePayloadImage(t *testing.T) {
	p := DecodePayload([]byte(`{"type":2,"url":"https://cdn/x.png","width":640,"height":480}`))
	assert.Equal(t, PayloadImage, p.Type)
	assert.Equal(t, "https://cdn/x.png", p.URL)
	assert.Equal(t, 640, p.Width)
	assert.Equal(t, 480, p.Height)
}

func TestDecodePayloadImageMissingDimensionsDegrades(t *testing.T) {
	// Without valid dimensions the image shape is not trusted.
	p := DecodePayload([]byte(`{"type":2,"url":"https://cdn/x.png","content":"pic"}`))
	assert.Equal(t, PayloadText, p.Type)
	assert.Equal(t, "pic", p.Content)
}

func TestDecodePayloadFile(t *testing.T) {
	p := DecodePayload([]byte(`{"type":3,"url":"https://cdn/d.pdf","name":"d.pdf","size":1234}`))
	assert.Equal(t, PayloadFile, p.Type)
	assert.Equal(t, "d.pdf", p.Name)
	assert.Equal(t, int64(1234), p.Size)
	assert.Equal(t, "[file]", p.Content, "missing content gets the generic label")
}

func TestDecodePayloadMixedFiltersInvalidImages(t *testing.T) {
	p := DecodePayload([]byte(`{
		"type":12,"content":"see attached",
		"images":[{"url":"https://cdn/a.png","width":10,"height":10},{"url":"","width":0,"height":0}],
		"file":{"url":"https://cdn/b.zip","name":"b.zip","size":9}
	}`))
	assert.Equal(t, PayloadMixed, p.Type)
	require.Len(t, p.Images, 1)
	assert.Equal(t, "https://cdn/a.png", p.Images[0].URL)
	require.NotNil(t, p.File)
	assert.Equal(t, "b.zip", p.File.Name)
}

func TestDecodePayloadCommand(t *testing.T) {
	p := DecodePayload([]byte(`{"type":99,"cmd":"refresh"}`))
	assert.Equal(t, PayloadCommand, p.Type)
	assert.Equal(t, "refresh", p.Cmd)
	assert.NotNil(t, p.Param)
}

func TestDecodePayloadAILoading(t *testing.T) {
	p := DecodePayload([]byte(`{"type":100}`))
	assert.Equal(t, PayloadAILoading, p.Type)
}

func TestDecodePayloadSystemRange(t *testing.T) {
	p := DecodePayload([]byte(`{"type":1005,"content":"{0} joined","extra":[{"uid":"u1","name":"Ada"}]}`))
	assert.Equal(t, 1005, p.Type)
	assert.Equal(t, "{0} joined", p.Content)
	require.Len(t, p.Extra, 1)
}

func TestDecodePayloadUnknownTypeFallsBackToContent(t *testing.T) {
	p := DecodePayload([]byte(`{"type":42,"content":"mystery"}`))
	assert.Equal(t, PayloadText, p.Type)
	assert.Equal(t, "mystery", p.Content)
}

func TestFormatSystemContent(t *testing.T) {
	out := FormatSystemContent("{0} assigned {1}", []SystemExtra{
		{UID: "u1", Name: "Ada"},
		{UID: "u2"},
	})
	assert.Equal(t, "Ada assigned u2", out)
}

func TestIsSystemPayloadType(t *testing.T) {
	assert.True(t, IsSystemPayloadType(1000))
	assert.True(t, IsSystemPayloadType(2000))
	assert.False(t, IsSystemPayloadType(999))
	assert.False(t, IsSystemPayloadType(2001))
}

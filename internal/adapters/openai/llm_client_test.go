package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClassifyResponse(t *testing.T) {
	parsed, err := parseClassifyResponse(`{"is_spam": true, "reason": "реклама казино"}`)
	require.NoError(t, err)
	assert.True(t, parsed.IsSpam)
	assert.Equal(t, "реклама казино", parsed.Reason)
}

func TestParseClassifyResponseWithStrayText(t *testing.T) {
	raw := "Вот мой вердикт:\n```json\n{\"is_spam\": false, \"reason\": \"обычный комментарий\"}\n```\nНадеюсь, это поможет."
	parsed, err := parseClassifyResponse(raw)
	require.NoError(t, err)
	assert.False(t, parsed.IsSpam)
}

func TestParseClassifyResponseInvalid(t *testing.T) {
	_, err := parseClassifyResponse("не могу определить")
	assert.Error(t, err)

	_, err = parseClassifyResponse("{broken json}")
	assert.Error(t, err)
}

package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSSELine(t *testing.T) {
	data, ok := decodeSSELine("data: {\"id\":\"1\"}\n")
	assert.True(t, ok)
	assert.Equal(t, `{"id":"1"}`, data)

	data, ok = decodeSSELine("data: [DONE]\n")
	assert.True(t, ok)
	assert.Equal(t, "[DONE]", data)

	_, ok = decodeSSELine(": keep-alive\n")
	assert.False(t, ok)

	_, ok = decodeSSELine("event: message\n")
	assert.False(t, ok)

	_, ok = decodeSSELine("\n")
	assert.False(t, ok)
}

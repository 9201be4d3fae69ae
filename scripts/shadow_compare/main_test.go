package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractUUIDsAcceptsBothShapes(t *testing.T) {
	enveloped, err := extractUUIDs([]byte(`{"data":[{"uuid":"A"},{"uuid":"b"}],"meta":{"count":2}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, enveloped)

	bare, err := extractUUIDs([]byte(`[{"uuid":"a"},{"uuid":"B"}]`))
	require.NoError(t, err)
	assert.True(t, equalOrder(enveloped, bare))
}

func TestEqualOrderIsOrderSensitive(t *testing.T) {
	assert.False(t, equalOrder([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, equalOrder([]string{"a"}, []string{"a", "b"}))
}

package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqlString(t *testing.T) {
	assert.False(t, ToSqlString(nil).Valid)
	assert.Nil(t, FromSqlStringPtr(ToSqlString(nil)))

	v := "task"
	got := FromSqlStringPtr(ToSqlString(&v))
	require.NotNil(t, got)
	assert.Equal(t, "task", *got)
}

func TestNullRawMessage(t *testing.T) {
	var nilSlice []string
	raw, err := ToNullRawMessage(nilSlice)
	require.NoError(t, err)
	assert.False(t, raw.Valid)

	dst := []string{"untouched"}
	require.NoError(t, FromNullRawMessage(raw, &dst))
	assert.Equal(t, []string{"untouched"}, dst)

	raw, err = ToNullRawMessage([]string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, raw.Valid)

	var out []string
	require.NoError(t, FromNullRawMessage(raw, &out))
	assert.Equal(t, []string{"a", "b"}, out)
}

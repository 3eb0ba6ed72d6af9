package audit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	s, err := snapshot(nil)
	require.NoError(t, err)
	require.Equal(t, "null", s)

	s, err = snapshot(map[string]any{"code": "madi", "is_active": false})
	require.NoError(t, err)
	require.JSONEq(t, `{"code":"madi","is_active":false}`, s)

	_, err = snapshot(make(chan int))
	require.ErrorContains(t, err, "marshal audit snapshot")
}

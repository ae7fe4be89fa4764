package utils_test

import (
	"testing"

	"github.com/jrsteele09/storefront-auth/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestToStringSlice(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, utils.ToStringSlice([]any{"a", 1, nil, "b", true}))
	require.Empty(t, utils.ToStringSlice(nil))
}

func TestUnique(t *testing.T) {
	require.Equal(t, []string{"admin", "editor", "viewer"},
		utils.Unique([]string{"admin", "", "editor"}, []string{"editor", "viewer", "admin"}))
	require.Nil(t, utils.Unique())
}

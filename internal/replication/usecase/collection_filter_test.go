package usecase

import (
	"testing"

	apperrors "pos-replicator/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionFilter_Exclusions(t *testing.T) {
	filter, err := NewCollectionFilter([]string{"sync_provenance", " "}, "", nil)
	require.NoError(t, err)

	names := []string{"users", "system.indexes", "sync_provenance", "bills", "system.profile", "bills"}
	assert.Equal(t, []string{"bills", "users"}, filter.Eligible(names))
	assert.Equal(t, []string{"sync_provenance"}, filter.Excluded())
	assert.False(t, filter.Allows(""))
}

func TestCollectionFilter_Expression(t *testing.T) {
	filter, err := NewCollectionFilter(nil, `!name.startsWith("tmp_") && name != "audit"`, nil)
	require.NoError(t, err)

	assert.True(t, filter.Allows("orders"))
	assert.False(t, filter.Allows("tmp_import"))
	assert.False(t, filter.Allows("audit"))
	assert.False(t, filter.Allows("system.js"), "system collections stay excluded")
	assert.Equal(t, []string{"orders"}, filter.Eligible([]string{"tmp_1", "orders", "audit"}))
}

func TestCollectionFilter_InvalidExpression(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"syntax error", `name ==`},
		{"unknown variable", `collection == "bills"`},
		{"non-boolean result", `name + "_x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCollectionFilter(nil, tt.expr, nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
		})
	}
}

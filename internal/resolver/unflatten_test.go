package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/domain"
)

func TestUnflattenBuildsNestedTree(t *testing.T) {
	flat := map[string]domain.Document{
		"config.boot_timeout":  domain.NewPosInt(30),
		"config.properties.k":  domain.NewString("v"),
		"package.important":    domain.NewArray([]domain.Document{domain.NewString("a")}),
	}
	root, err := unflatten(flat)
	require.NoError(t, err)
	require.Equal(t, 30, intAt(root, "config.boot_timeout", -1))
	require.Equal(t, "v", stringAt(root, "config.properties.k"))
	require.Equal(t, []string{"a"}, stringSliceAt(root, "package.important"))
}

func TestUnflattenDetectsScalarThenObjectConflict(t *testing.T) {
	flat := map[string]domain.Document{
		"config":             domain.NewPosInt(1),
		"config.boot_timeout": domain.NewPosInt(30),
	}
	_, err := unflatten(flat)
	require.True(t, errors.Is(err, domain.ErrUnflattenConflict))
}

func TestUnflattenDetectsObjectThenScalarConflict(t *testing.T) {
	flat := map[string]domain.Document{
		"config.boot_timeout": domain.NewPosInt(30),
		"config":             domain.NewPosInt(1),
	}
	_, err := unflatten(flat)
	require.True(t, errors.Is(err, domain.ErrUnflattenConflict))
}

func TestIntPtrAtMissingReturnsFalse(t *testing.T) {
	root, err := unflatten(map[string]domain.Document{})
	require.NoError(t, err)
	_, ok := intPtrAt(root, "config.boot_timeout")
	require.False(t, ok)
}

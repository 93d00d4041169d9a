package advisorylock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateLockIDDeterministic(t *testing.T) {
	id1 := generateLockID(NamespaceSchemaMigration, "workspace1")
	id2 := generateLockID(NamespaceSchemaMigration, "workspace1")
	assert.Equal(t, id1, id2)
}

func TestGenerateLockIDDifferentKeys(t *testing.T) {
	id1 := generateLockID(NamespaceSchemaMigration, "workspace1")
	id2 := generateLockID(NamespaceSchemaMigration, "workspace2")
	assert.NotEqual(t, id1, id2)
}

func TestGenerateLockIDDifferentNamespacesDoNotCollide(t *testing.T) {
	id1 := generateLockID(NamespaceSchemaMigration, "same-key")
	id2 := generateLockID(NamespaceDimensionReorder, "same-key")
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, id1&0xFFFFFFFF, id2&0xFFFFFFFF, "low 32 bits (the hash) must match across namespaces")
}

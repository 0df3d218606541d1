package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_Format(t *testing.T) {
	id := NewID("in")

	assert.True(t, strings.HasPrefix(id, "in_"))
	assert.Len(t, id, len("in_")+26)
	assert.True(t, IsValidULID(id))
}

func TestNewID_NormalizesPrefix(t *testing.T) {
	id := NewID(" SR ")

	assert.True(t, strings.HasPrefix(id, "sr_"))
	assert.True(t, IsValidULID(id))
}

func TestNewID_PanicsOnEmptyPrefix(t *testing.T) {
	assert.Panics(t, func() { NewID("") })
	assert.Panics(t, func() { NewID("   ") })
}

func TestIsValidULID_Rejects(t *testing.T) {
	assert.False(t, IsValidULID(""))
	assert.False(t, IsValidULID("no-separator"))
	assert.False(t, IsValidULID("_01G0EZ1XTM37C5X11SQTDNCTM1"))
	assert.False(t, IsValidULID("in_tooshort"))
	assert.False(t, IsValidULID("IN_01G0EZ1XTM37C5X11SQTDNCTM1"))
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID("u")
		assert.False(t, seen[id])
		seen[id] = true
	}
}

package util_test

import (
	"testing"

	"github.com/artefactual-labs/spaces/util"
	"github.com/stretchr/testify/assert"
)

func TestStringListContains(t *testing.T) {
	list := []string{"apple", "orange", "banana"}
	assert.True(t, util.StringListContains(list, "orange"))
	assert.False(t, util.StringListContains(list, "wedgewood"))
	// Make sure we don't panic on nil list
	assert.False(t, util.StringListContains(nil, "mango"))
}

func TestPointerToString(t *testing.T) {
	value := "salad days"
	assert.Equal(t, "salad days", util.PointerToString(&value))
	assert.Equal(t, "", util.PointerToString(nil))
}

func TestPointerToInt64(t *testing.T) {
	value := int64(909)
	assert.Equal(t, int64(909), util.PointerToInt64(&value))
	assert.Equal(t, int64(0), util.PointerToInt64(nil))
}

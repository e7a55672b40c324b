package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	r.Register(EnumDef{Name: "user_role", Values: []string{"ADMIN", "STUDENT"}})

	vals, ok := r.Get("USER_ROLE")
	require.True(t, ok)
	assert.Equal(t, []string{"ADMIN", "STUDENT"}, vals)
	assert.True(t, r.Has("user_role"))
	assert.Empty(t, r.Errors())
}

func TestRegistryIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(EnumDef{Name: "STATUS", Values: []string{"OPEN", "CLOSED"}})
	r.Register(EnumDef{Name: "status", Values: []string{"OPEN", "CLOSED"}})

	assert.Empty(t, r.Errors())
	assert.Len(t, r.All(), 1)
}

func TestRegistryRedefined(t *testing.T) {
	r := NewRegistry()
	r.Register(EnumDef{Name: "STATUS", Values: []string{"OPEN", "CLOSED"}})
	r.Register(EnumDef{Name: "STATUS", Values: []string{"OPEN"}})

	require.Len(t, r.Errors(), 1)
	assert.Equal(t, EnumRedefined, r.Errors()[0].Kind)
}

func TestRegistryDuplicateValues(t *testing.T) {
	r := NewRegistry()
	r.Register(EnumDef{Name: "A", Values: []string{"X", "Y"}})
	r.Register(EnumDef{Name: "B", Values: []string{"X", "Y"}})

	require.Len(t, r.Errors(), 1)
	assert.Equal(t, EnumDuplicateValues, r.Errors()[0].Kind)
	assert.False(t, r.Has("B"))
}

// Registration over distinct names commutes: either order yields the same
// registry contents.
func TestRegistryCommutative(t *testing.T) {
	a := EnumDef{Name: "A", Values: []string{"X"}}
	b := EnumDef{Name: "B", Values: []string{"Y"}}

	r1 := NewRegistry()
	r1.Register(a)
	r1.Register(b)
	r2 := NewRegistry()
	r2.Register(b)
	r2.Register(a)

	v1, _ := r1.Get("A")
	v2, _ := r2.Get("A")
	assert.Equal(t, v1, v2)
	assert.ElementsMatch(t, r1.All(), r2.All())
}

func TestRegistryOrderPreserved(t *testing.T) {
	r := NewRegistry()
	r.Register(EnumDef{Name: "Z", Values: []string{"1"}})
	r.Register(EnumDef{Name: "A", Values: []string{"2"}})

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Z", all[0].Name)
	assert.Equal(t, "A", all[1].Name)
}

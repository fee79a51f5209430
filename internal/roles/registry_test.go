package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryDropsBlanksAndDuplicates(t *testing.T) {
	r := NewRegistry([]string{"CEO", "", "Designer", "CEO", "  "})
	assert.Equal(t, []string{"CEO", "Designer"}, r.List())
}

func TestRegister(t *testing.T) {
	r := NewRegistry([]string{"CEO"})

	require.NoError(t, r.Register("Copywriter"))
	assert.True(t, r.Contains("Copywriter"))
	assert.Equal(t, []string{"CEO", "Copywriter"}, r.List())

	assert.ErrorIs(t, r.Register("Copywriter"), ErrDuplicate)
	assert.ErrorIs(t, r.Register("   "), ErrEmpty)
}

func TestResolve(t *testing.T) {
	r := NewRegistry([]string{"Designer"})

	role, err := r.Resolve("Designer")
	require.NoError(t, err)
	assert.Equal(t, Role("Designer"), role)

	_, err = r.Resolve("Estagiário")
	assert.ErrorIs(t, err, ErrUnknown)
}

func TestListIsACopy(t *testing.T) {
	r := NewRegistry([]string{"CEO", "Designer"})
	got := r.List()
	got[0] = "mutated"
	assert.Equal(t, []string{"CEO", "Designer"}, r.List())
}

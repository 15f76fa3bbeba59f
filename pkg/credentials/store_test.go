package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	values map[string]string
}

func (m *mapStore) Retrieve(name string) (string, error) {
	if v, ok := m.values[name]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("VOOMREPORT_TEST_SECRET", "s3cret")

	store := NewEnvironmentStore()
	value, err := store.Retrieve("VOOMREPORT_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", value)

	_, err = store.Retrieve("VOOMREPORT_TEST_MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChainOrder(t *testing.T) {
	first := &mapStore{values: map[string]string{"TOKEN": "from-first"}}
	second := &mapStore{values: map[string]string{"TOKEN": "from-second", "OTHER": "x"}}

	chain := NewChain(first, second)

	value, err := chain.Retrieve("TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "from-first", value)

	value, err = chain.Retrieve("OTHER")
	require.NoError(t, err)
	assert.Equal(t, "x", value)

	_, err = chain.Retrieve("MISSING")
	assert.ErrorIs(t, err, ErrNotFound)
}

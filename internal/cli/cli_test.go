package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvidersUpdateFlags(t *testing.T) {
	for _, name := range []string{"name", "description", "settings", "active"} {
		assert.NotNil(t, providersUpdateCmd.Flags().Lookup(name), name)
	}
}

func TestProvidersUpdateNameFlagBindsVariable(t *testing.T) {
	flags := providersUpdateCmd.Flags()
	require.NoError(t, flags.Set("name", "DeepL Pro"))
	t.Cleanup(func() { providerName = "" })

	assert.True(t, flags.Changed("name"))
	assert.Equal(t, "DeepL Pro", providerName)
}

func TestWatchFlagsRegistered(t *testing.T) {
	assert.NotNil(t, quotaCmd.Flags().Lookup("watch"))
	assert.NotNil(t, statusCmd.Flags().Lookup("watch"))
}

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "harmon", cmd.Use)
	assert.Contains(t, cmd.Long, "harmonizes")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"init", "import", "export", "products", "stats",
		"harmonize", "disambiguate", "authority", "rules",
		"stores", "pull", "queue",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestHarmonizeSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"list", "preview", "apply", "apply-all", "history", "undo", "redo"} {
		subCmd, _, err := cmd.Find([]string{"harmonize", name})
		require.NoError(t, err, "harmonize %s should exist", name)
		assert.Equal(t, name, subCmd.Name())
	}
}

func TestProductsSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"list", "show", "set", "delete", "purge"} {
		subCmd, _, err := cmd.Find([]string{"products", name})
		require.NoError(t, err, "products %s should exist", name)
		assert.Equal(t, name, subCmd.Name())
	}
}

func TestQueueSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"list", "approve", "reject", "bulk-approve", "bulk-reject", "logs"} {
		subCmd, _, err := cmd.Find([]string{"queue", name})
		require.NoError(t, err, "queue %s should exist", name)
		assert.Equal(t, name, subCmd.Name())
	}
}

func TestStoresAddFlags(t *testing.T) {
	cmd := NewRootCommand()
	addCmd, _, err := cmd.Find([]string{"stores", "add"})
	require.NoError(t, err)

	platformFlag := addCmd.Flags().Lookup("platform")
	require.NotNil(t, platformFlag)

	urlFlag := addCmd.Flags().Lookup("url")
	require.NotNil(t, urlFlag)
}

func TestPullFlags(t *testing.T) {
	cmd := NewRootCommand()
	pullCmd, _, err := cmd.Find([]string{"pull"})
	require.NoError(t, err)

	pageFlag := pullCmd.Flags().Lookup("page")
	require.NotNil(t, pageFlag)
	assert.Equal(t, "1", pageFlag.DefValue)

	perPageFlag := pullCmd.Flags().Lookup("per-page")
	require.NotNil(t, perPageFlag)
	assert.Equal(t, "50", perPageFlag.DefValue)
}

func TestImportFlags(t *testing.T) {
	cmd := NewRootCommand()
	importCmd, _, err := cmd.Find([]string{"import"})
	require.NoError(t, err)

	replaceFlag := importCmd.Flags().Lookup("replace")
	require.NotNil(t, replaceFlag)
	assert.Equal(t, "false", replaceFlag.DefValue)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs([]string{"--format", "invalid", "stats"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

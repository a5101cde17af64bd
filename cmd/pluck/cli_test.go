package main_test

import (
	"bytes"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/pluck"
	main "github.com/fwojciec/pluck/cmd/pluck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLI_HelpShowsAllCommands(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	stdout := &bytes.Buffer{}

	parser, err := kong.New(cli,
		kong.Writers(stdout, &bytes.Buffer{}),
		kong.Exit(func(int) {}),
		kong.Vars{"default_prompt": pluck.DefaultPrompt},
	)
	require.NoError(t, err)

	_, _ = parser.Parse([]string{"--help"})

	for _, cmd := range []string{"extract", "key set", "key show", "key clear", "serve"} {
		assert.Contains(t, stdout.String(), cmd, "Help should mention %s command", cmd)
	}
}

func TestCLI_ExtractDefaults(t *testing.T) {
	t.Parallel()

	cli := &main.CLI{}
	parser, err := kong.New(cli,
		kong.Exit(func(int) {}),
		kong.Vars{"default_prompt": pluck.DefaultPrompt},
	)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"extract", "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", cli.Extract.URL)
	assert.Equal(t, pluck.DefaultPrompt, cli.Extract.Prompt)
}

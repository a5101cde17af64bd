package main

import (
	"fmt"

	"github.com/fwojciec/pluck"
	"github.com/fwojciec/pluck/extraction"
)

// Run executes the extract command.
func (c *ExtractCmd) Run(deps *Dependencies) error {
	client := extraction.NewClient(deps.Extractor, deps.Credentials, deps.Config.Profile,
		extraction.WithDefaultCredential(deps.Config.Firecrawl.Key),
	)
	defer client.Close()

	if err := client.Start(deps.Ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", pluck.ErrorMessage(err))
		return err
	}

	text, err := client.Submit(deps.Ctx, c.URL, c.Prompt)
	if err != nil {
		if result := client.Result(); result != nil {
			fmt.Fprintln(deps.Stderr, result.Text)
		} else {
			fmt.Fprintf(deps.Stderr, "error: %s\n", pluck.ErrorMessage(err))
		}
		switch pluck.ErrorCode(err) {
		case pluck.ECREDENTIAL, pluck.EUNAUTHORIZED:
			fmt.Fprintln(deps.Stderr, "Hint: Set your API key with 'pluck key set <key>' or the FIRECRAWL_API_KEY environment variable")
		}
		return err
	}

	fmt.Fprintln(deps.Stdout, text)
	return nil
}

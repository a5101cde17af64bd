package main

import (
	"fmt"

	"github.com/fwojciec/pluck"
	"github.com/fwojciec/pluck/extraction"
)

// Run executes the key set command.
func (c *KeySetCmd) Run(deps *Dependencies) error {
	client := extraction.NewClient(deps.Extractor, deps.Credentials, deps.Config.Profile)
	defer client.Close()

	if err := client.SaveCredential(deps.Ctx, c.Key); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", pluck.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Saved API key %s for profile %q\n", pluck.MaskCredential(c.Key), deps.Config.Profile)
	return nil
}

// Run executes the key show command.
func (c *KeyShowCmd) Run(deps *Dependencies) error {
	value, err := deps.Credentials.GetCredential(deps.Ctx, deps.Config.Profile, pluck.CredentialKey)
	if pluck.ErrorCode(err) == pluck.ENOTFOUND {
		fmt.Fprintln(deps.Stdout, "No API key stored. Use 'pluck key set <key>' to store one.")
		return nil
	} else if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", pluck.ErrorMessage(err))
		return err
	}

	fmt.Fprintln(deps.Stdout, pluck.MaskCredential(value))
	return nil
}

// Run executes the key clear command.
func (c *KeyClearCmd) Run(deps *Dependencies) error {
	client := extraction.NewClient(deps.Extractor, deps.Credentials, deps.Config.Profile)
	defer client.Close()

	if err := client.ClearCredential(deps.Ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", pluck.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Removed API key for profile %q\n", deps.Config.Profile)
	return nil
}

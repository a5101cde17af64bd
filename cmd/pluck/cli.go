package main

import (
	"context"
	"io"

	"github.com/fwojciec/pluck"
	"github.com/rs/zerolog"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx         context.Context
	Stdout      io.Writer
	Stderr      io.Writer
	Logger      zerolog.Logger
	Config      Config
	Extractor   pluck.Extractor
	Credentials pluck.CredentialStore
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `help:"Path to a YAML config file" placeholder:"PATH"`
	DB      string `help:"SQLite database path" placeholder:"PATH"`
	Store   string `help:"Credential store (sqlite or redis)"`
	Profile string `help:"Credential profile"`
	Verbose bool   `short:"v" help:"Enable debug logging"`

	Extract ExtractCmd `cmd:"" help:"Extract data from a web page"`
	Key     KeyCmd     `cmd:"" help:"Manage the Firecrawl API key"`
	Serve   ServeCmd   `cmd:"" help:"Serve the extraction form over HTTP"`
}

// ExtractCmd is the "extract" subcommand.
type ExtractCmd struct {
	URL    string `arg:"" help:"URL of the page to extract from"`
	Prompt string `short:"p" default:"${default_prompt}" help:"What to extract"`
}

// KeyCmd groups the "key" subcommands.
type KeyCmd struct {
	Set   KeySetCmd   `cmd:"" help:"Store the Firecrawl API key"`
	Show  KeyShowCmd  `cmd:"" help:"Show the stored API key, masked"`
	Clear KeyClearCmd `cmd:"" help:"Remove the stored API key"`
}

// KeySetCmd is the "key set" subcommand.
type KeySetCmd struct {
	Key string `arg:"" help:"Firecrawl API key"`
}

// KeyShowCmd is the "key show" subcommand.
type KeyShowCmd struct{}

// KeyClearCmd is the "key clear" subcommand.
type KeyClearCmd struct{}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	Addr        string `help:"Bind address (default :3000)"`
	MetricsAddr string `help:"Serve metrics on a separate address"`
}

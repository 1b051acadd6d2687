// Package cmd implements the command-line interface of dDispatch.
//
// The package is organized into several subpackages:
//
//   - send: Sends messages or a file range to a TCP destination through the
//     dispatcher engine and prints sender statistics and engine metrics
//   - echo: Runs a TCP echo (or sink) server as a local destination
//   - util: Shared utilities for flags and configuration (internal use)
//
// Every flag can also be set through an environment variable with the
// DDISPATCH_ prefix, .env and .env.local files are loaded on startup.
//
// See ddispatch -help for a list of all commands.
package cmd

// Package main is the entry point for the Rust playground MCP server.
//
// The server compiles, runs, formats and lints untrusted Rust code inside
// throwaway containers with no network and fixed memory, process and time
// limits. It is reachable over stdio or streamable HTTP.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main

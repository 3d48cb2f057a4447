// Package mcpserver exposes the playground over the Model Context Protocol.
//
// It registers four tools backed by a sandbox.Executor: compile, execute,
// format and lint. Each tool call runs as a sandbox.Task bound to the request
// context, so a client that cancels its request also stops the container.
// Successful calls return the JSON-encoded sandbox response; sandbox errors
// are reported as tool errors.
//
// Usage:
//
//	server, err := mcpserver.New(cfg, logger, executor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver

// Package logger provides structured logging capabilities.
//
// The logger package builds the zap logger shared by the sandbox
// orchestrator, the isolation engines and the MCP front end. Development
// mode logs colored console output; production mode logs JSON.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("sandbox session opened", zap.String("input", path))
package logger

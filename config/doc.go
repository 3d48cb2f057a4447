// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and PLAYGROUND_* environment variables. It
// covers the server transport, the isolation engine backend and its resource
// limits, the formatter and linter tool images, and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Sandbox backend: %s\n", cfg.Sandbox.Backend)
package config

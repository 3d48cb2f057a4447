// Package sandbox runs untrusted Rust source inside disposable containers.
//
// A Sandbox owns one Workspace (a source file and an output directory on the
// host), builds the container invocation with a CommandBuilder, runs it through
// an isolation Engine and turns the raw process result into a typed response.
// Resource limits, the disabled network and the in-container timeout are all
// configured on the invocation; enforcement is left to the container engine.
//
// Two engines are provided: CLIEngine shells out to the docker or podman
// binary, APIEngine talks to the Docker Engine API. Service opens one Sandbox
// per request and bounds how many run at once.
//
// Usage:
//
//	builder := sandbox.NewCommandBuilder(sandbox.DefaultBuilderConfig())
//	sb, err := sandbox.New(logger, builder, sandbox.NewCLIEngine(logger, "docker"))
//	if err != nil {
//	    return err
//	}
//	defer sb.Close()
//
//	resp, err := sb.Execute(ctx, sandbox.ExecuteRequest{
//	    Channel: sandbox.ChannelStable,
//	    Mode:    sandbox.ModeDebug,
//	    Code:    `fn main() { println!("Hello, world!"); }`,
//	})
package sandbox

// Package config provides configuration management for the restack CLI.
//
// This package handles loading and validating the tool's own configuration
// file. It is distinct from the Claude Desktop configuration, which is
// managed by the desktop package, and from the stack manifest, which is
// managed by the packages package.
//
// # Configuration File
//
// The default configuration file location is ~/.config/restack/config.yaml.
// The configuration file uses YAML format with the following structure:
//
//	version: 1
//	stack_root: /home/me/.local/share/restack/stack
//	packages_dir: ./packages
//	desktop_config: /home/me/.config/Claude/claude_desktop_config.json
//	manifest: ./stack.toml      # optional
//	node_bin: node              # optional override
//	probe_timeout: 10s
//
// Every key can also be set through the environment with a RESTACK_ prefix,
// e.g. RESTACK_STACK_ROOT or RESTACK_PACKAGES_DIR.
//
// # Loading Configuration
//
// Call [Init] once at startup, then [Load]:
//
//	config.Init()
//	cfg, err := config.Load("")
//	if err != nil {
//	    return fmt.Errorf("loading config: %w", err)
//	}
//
// A missing file is not an error when no explicit path was given; the
// built-in defaults apply.
//
// # Validation
//
// Use [Validate] to check a loaded configuration:
//
//	errs := config.Validate(cfg)
//	if len(errs) > 0 {
//	    for _, e := range errs {
//	        fmt.Println(e)
//	    }
//	}
package config

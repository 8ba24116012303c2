// Package paths defines the fixed stack directory layout and resolves the
// default locations for the stack root, the tool configuration, and the
// Claude Desktop configuration file.
//
// # Stack Layout
//
// A [Stack] owns all mutable state under one root directory:
//
//	<root>/
//	├── workspace/   scratch area
//	├── repos/       repository checkouts
//	├── packages/    package install prefix (displaced on rebuild)
//	├── cache/       isolated package cache (displaced on rebuild)
//	├── plugins/     desktop plugin directory (displaced on rebuild)
//	├── quarantine/  timestamped batches of displaced prior state
//	├── backups/     pre-run backup archives
//	├── snapshots/   post-run snapshot archives
//	└── logs/        structured run logs
//
// [Stack.Ensure] creates every directory with create-if-missing semantics,
// so fresh and repeat runs take the same code path.
//
// # XDG Base Directory Compliance
//
// The package wraps github.com/adrg/xdg for cross-platform XDG Base Directory
// Specification compliance. On Linux and macOS, paths follow XDG conventions
// (~/.config, ~/.local/share).
package paths

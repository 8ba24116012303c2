// Package backup provides compressed archive capture and retention for restack.
//
// Before any destructive step of a stack rebuild, the current state of the
// managed directories and the desktop configuration is captured into a single
// gzip-compressed tarball. The same mechanics, under a different filename
// prefix, produce the post-rebuild stack snapshot.
//
// # Archive Layout
//
// Each archive is a flat pair of files in the backup directory:
//
//	<stack root>/backups/
//	├── backup-20260123T100712.tar.gz
//	└── backup-20260123T100712.json
//
// The JSON sidecar is a [Manifest] recording the captured sources, the
// archive size, and a SHA256 hash for integrity verification.
//
// # Creating Archives
//
// Use [Manager.Backup] with the sources to capture:
//
//	mgr := backup.NewManager(backup.WithBackupDir(dir))
//	manifest, err := mgr.Backup([]archive.Source{
//	    {Path: stack.Packages(), Name: "packages"},
//	    {Path: configPath, Name: "claude_desktop_config.json"},
//	})
//
// The archive is verified present and non-empty on disk before the manifest
// is written. Missing sources are skipped: a first run with nothing to
// capture still produces a valid (if nearly empty) archive.
//
// # Integrity and Restore
//
// [Manager.Verify] recomputes the archive hash against the manifest and
// returns [ErrBackupCorrupted] on mismatch. [Manager.Restore] verifies and
// then extracts an archive into a destination directory.
//
// # Retention
//
// [Manager.Prune] removes archives beyond the retention count, newest kept:
//
//	err := mgr.Prune(5) // Keep 5 most recent archives
package backup

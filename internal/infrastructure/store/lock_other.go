//go:build !unix

package store

import "os"

// Advisory locking is only wired on unix hosts.
func lockExclusive(*os.File) error { return nil }

func unlock(*os.File) error { return nil }

// Directories cannot be fsynced portably; renames rely on the host.
func syncDir(string) error { return nil }

// Package stamp probes a package's build directory for the stamp file left
// behind by a prior successful build, letting the scheduler skip work that
// is already done.
package stamp

import (
	"os"
	"path/filepath"
)

// FileName is the sentinel build-completion marker buildroot-style build
// systems drop in a package's build directory.
const FileName = ".stamp_installed"

// AlreadyBuilt reports whether name has a stamp file under buildDir, in the
// versioned directory "<name>-<version>" if a version is given, or in the
// unversioned directory "<name>" otherwise.
func AlreadyBuilt(buildDir, name, version string) bool {
	dir := name
	if version != "" {
		dir = name + "-" + version
	}
	path := filepath.Join(buildDir, dir, FileName)
	_, err := os.Stat(path)
	return err == nil
}

package provisioner

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// SecurityChecker verifies a binary is in an allowed directory and not
// world-writable before it is spawned. Generalized from the teacher's
// executor.SecurityChecker: the root-ownership check is dropped since it
// does not apply to user-downloaded model-runtime binaries living outside
// /usr (§4.B).
type SecurityChecker struct {
	allowedDirs []string
}

// NewSecurityChecker builds a checker restricted to baseDir and its
// immediate platform-tagged subdirectories.
func NewSecurityChecker(allowedDirs ...string) *SecurityChecker {
	return &SecurityChecker{allowedDirs: allowedDirs}
}

// VerifyBinary checks that path exists, is a regular file, sits under an
// allowed directory, is not world-writable, and (on non-windows) has an
// executable bit set.
func (sc *SecurityChecker) VerifyBinary(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(absPath)
	allowed := false
	for _, d := range sc.allowedDirs {
		allowedAbs, err := filepath.Abs(d)
		if err == nil && dir == allowedAbs {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("binary %q is not in an allowed directory", absPath)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", absPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%q is a directory", absPath)
	}

	if info.Mode().Perm()&0o002 != 0 {
		return fmt.Errorf("binary %q is world-writable (mode=%s)", absPath, info.Mode())
	}

	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("binary %q is not executable (mode=%s)", absPath, info.Mode())
	}

	return nil
}

// Package provisioner locates, downloads, normalizes, and validates the
// two binaries the swap proxy needs to run: the swap front-end and the
// inference server (component B).
package provisioner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clarad/clarad/internal/model"
)

// swapCandidates and serverCandidates are tried in order; the first
// existing file in a directory wins (§4.B: "Candidate filenames are
// tried in a fixed order").
var (
	swapCandidates   = []string{"llama-swap", "llama-swap.exe"}
	serverCandidates = []string{"llama-server", "llama-server.exe"}
)

// aggregateDownloadTimeout bounds the whole ensureBinaries download phase
// (§4.B: "bounded by a 5-minute aggregate timeout").
const aggregateDownloadTimeout = 5 * time.Minute

// Provisioner resolves and maintains the binary set for one accelerator.
type Provisioner struct {
	BaseDir     string
	Accelerator model.Accelerator
	OS          model.OS

	index    ReleaseIndex
	security *SecurityChecker
	log      *logrus.Entry
}

// New creates a Provisioner rooted at baseDir for the given platform.
func New(baseDir string, os_ model.OS, accelerator model.Accelerator, index ReleaseIndex, log *logrus.Entry) *Provisioner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	platformDir := filepath.Join(baseDir, platformTag(os_, accelerator))
	return &Provisioner{
		BaseDir:     baseDir,
		Accelerator: accelerator,
		OS:          os_,
		index:       index,
		security:    NewSecurityChecker(baseDir, platformDir),
		log:         log,
	}
}

func platformTag(os_ model.OS, acc model.Accelerator) string {
	return string(os_) + "-" + string(acc)
}

func (p *Provisioner) platformDir() string {
	return filepath.Join(p.BaseDir, platformTag(p.OS, p.Accelerator))
}

// findCandidate returns the first existing candidate file in dir.
func findCandidate(dir string, candidates []string) string {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// EnsureBinaries resolves BinarySet, downloading and repairing as needed.
// Provisioning failures never propagate if a fallback exists; they degrade
// to base-directory binaries (§4.B).
func (p *Provisioner) EnsureBinaries(ctx context.Context) (model.BinarySet, error) {
	ctx, cancel := context.WithTimeout(ctx, aggregateDownloadTimeout)
	defer cancel()

	platformDir := p.platformDir()
	swapPath := findCandidate(platformDir, swapCandidates)
	serverPath := findCandidate(platformDir, serverCandidates)

	bs := model.BinarySet{Accelerator: p.Accelerator}

	if serverPath == "" {
		if err := p.downloadAccelerator(ctx, platformDir); err != nil {
			p.log.WithError(err).Warn("provisioner: accelerator download failed, degrading to base binaries")
			bs.Degraded = true
			bs.DegradeReason = err.Error()
		} else {
			serverPath = findCandidate(platformDir, serverCandidates)
		}
	}

	if swapPath == "" {
		if err := p.downloadSwapFrontend(ctx); err != nil {
			p.log.WithError(err).Warn("provisioner: swap front-end download failed, degrading to base binaries")
			bs.Degraded = true
			if bs.DegradeReason == "" {
				bs.DegradeReason = err.Error()
			}
		} else {
			swapPath = findCandidate(p.BaseDir, swapCandidates)
		}
	}

	if serverPath == "" {
		serverPath = findCandidate(p.BaseDir, serverCandidates)
	}
	if swapPath == "" {
		swapPath = findCandidate(p.BaseDir, swapCandidates)
	}

	if err := p.repairNames(swapPath, serverPath); err != nil {
		p.log.WithError(err).Warn("provisioner: name repair failed")
	}

	bs.SwapPath = swapPath
	bs.ServerPath = serverPath

	if swapPath == "" || serverPath == "" {
		return bs, fmt.Errorf("provisioner: required binaries missing after provisioning (base directory has none either)")
	}
	return bs, nil
}

// Validate confirms both binaries exist and are executable, producing a
// diagnostics bundle on failure (§4.B).
func (p *Provisioner) Validate(bs model.BinarySet) (bool, *model.Diagnostics) {
	platformDir := p.platformDir()
	attempted := []string{bs.SwapPath, bs.ServerPath}

	var problems []string
	if bs.SwapPath == "" {
		problems = append(problems, "swap front-end path is empty")
	} else if err := p.security.VerifyBinary(bs.SwapPath); err != nil {
		problems = append(problems, err.Error())
	}
	if bs.ServerPath == "" {
		problems = append(problems, "inference server path is empty")
	} else if err := p.security.VerifyBinary(bs.ServerPath); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) == 0 {
		return true, nil
	}

	diag := &model.Diagnostics{
		BaseDir:         p.BaseDir,
		PlatformDir:     platformDir,
		AttemptedPaths:  attempted,
		BaseListing:     listDir(p.BaseDir),
		PlatformListing: listDir(platformDir),
		Message:         joinProblems(problems),
	}
	return false, diag
}

func listDir(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func joinProblems(problems []string) string {
	msg := "binary validation failed: "
	for i, p := range problems {
		if i > 0 {
			msg += "; "
		}
		msg += p
	}
	return msg
}

// repairNames ensures both a platform-specific name and a canonical name
// exist for each resolved binary, so post-update renames do not break
// callers (§4.B). Copies on windows, symlinks elsewhere.
func (p *Provisioner) repairNames(swapPath, serverPath string) error {
	var firstErr error
	for _, group := range []struct {
		resolved   string
		candidates []string
	}{
		{swapPath, swapCandidates},
		{serverPath, serverCandidates},
	} {
		if group.resolved == "" {
			continue
		}
		for _, name := range group.candidates {
			target := filepath.Join(filepath.Dir(group.resolved), name)
			if target == group.resolved {
				continue
			}
			if _, err := os.Stat(target); err == nil {
				continue
			}
			if err := linkOrCopy(group.resolved, target); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func linkOrCopy(src, dst string) error {
	if runtime.GOOS == "windows" {
		return copyFile(src, dst)
	}
	return os.Symlink(src, dst)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

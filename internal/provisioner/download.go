package provisioner

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// perAssetTimeout bounds a single asset fetch (§4.B).
const perAssetTimeout = 2 * time.Minute

// ReleaseAsset is one downloadable file from the upstream release index.
type ReleaseAsset struct {
	Name        string
	DownloadURL string
	SizeBytes   int64
}

// ReleaseIndex lists the assets published for the current release. The
// real implementation fetches and parses the upstream release feed; the
// HTTP client used for that fetch is an external collaborator per §1 and
// is not implemented here — ReleaseIndex is the seam tests fake against.
type ReleaseIndex interface {
	ListAssets(ctx context.Context) ([]ReleaseAsset, error)
}

// HTTPReleaseIndex serves a pre-resolved list of asset URLs. Parsing the
// upstream release feed itself is out of scope (§1 "external collaborator");
// this just knows how to stream an asset once its URL is known.
type HTTPReleaseIndex struct {
	Assets []ReleaseAsset
}

func (h *HTTPReleaseIndex) ListAssets(ctx context.Context) ([]ReleaseAsset, error) {
	return h.Assets, nil
}

// matchRule is one row of Table Match-1.
type matchRule struct {
	class    string
	positive []string
	negative []string
}

// matchTable1 implements Table Match-1 (accelerator -> asset matcher, §4.B).
var matchTable1 = []matchRule{
	{class: "cuda-main", positive: []string{"bin-win-cuda", ".zip"}, negative: []string{"cudart"}},
	{class: "cuda-runtime", positive: []string{"cudart", "bin-win-cuda"}},
	{class: "rocm", positive: []string{"bin-win-hip-radeon"}},
	{class: "vulkan-win", positive: []string{"vulkan", "win"}},
	{class: "cpu-win", positive: []string{"bin-win-cpu", "x64"}},
	{class: "vulkan-linux", positive: []string{"ubuntu", "vulkan"}},
	{class: "cpu-linux", positive: []string{"ubuntu"}, negative: []string{"vulkan", "cuda", "rocm"}},
}

func matchesRule(assetName string, rule matchRule) bool {
	lower := strings.ToLower(assetName)
	for _, tok := range rule.positive {
		if !strings.Contains(lower, strings.ToLower(tok)) {
			return false
		}
	}
	for _, tok := range rule.negative {
		if strings.Contains(lower, strings.ToLower(tok)) {
			return false
		}
	}
	return true
}

// classesFor returns the Table Match-1 classes relevant to this
// provisioner's OS/accelerator pair, most-specific first.
func (p *Provisioner) classesFor() []string {
	switch p.Accelerator {
	case "cuda":
		return []string{"cuda-main", "cuda-runtime"}
	case "rocm":
		return []string{"rocm"}
	case "vulkan":
		if p.OS == "win" {
			return []string{"vulkan-win"}
		}
		return []string{"vulkan-linux"}
	default:
		if p.OS == "win" {
			return []string{"cpu-win"}
		}
		return []string{"cpu-linux"}
	}
}

func findAsset(assets []ReleaseAsset, class string) (ReleaseAsset, bool) {
	var rule matchRule
	found := false
	for _, r := range matchTable1 {
		if r.class == class {
			rule = r
			found = true
			break
		}
	}
	if !found {
		return ReleaseAsset{}, false
	}
	for _, a := range assets {
		if matchesRule(a.Name, rule) {
			return a, true
		}
	}
	return ReleaseAsset{}, false
}

// downloadAccelerator downloads and extracts the accelerator-specific
// binaries into dir. CUDA is a dual download: both the main archive and
// the runtime-library archive must land in dir; if either fails the whole
// operation fails so the caller degrades to base-directory binaries
// (§4.B).
func (p *Provisioner) downloadAccelerator(ctx context.Context, dir string) error {
	if p.index == nil {
		return fmt.Errorf("no release index configured")
	}
	assets, err := p.index.ListAssets(ctx)
	if err != nil {
		return fmt.Errorf("list release assets: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create platform dir: %w", err)
	}

	for _, class := range p.classesFor() {
		asset, ok := findAsset(assets, class)
		if !ok {
			return fmt.Errorf("no release asset matched class %q", class)
		}
		if err := p.fetchAndExtract(ctx, asset, dir); err != nil {
			return fmt.Errorf("class %q: %w", class, err)
		}
	}
	return nil
}

// downloadSwapFrontend downloads the shared swap front-end into the base
// directory (it is platform-independent beyond OS, unlike the accelerator
// binaries).
func (p *Provisioner) downloadSwapFrontend(ctx context.Context) error {
	if p.index == nil {
		return fmt.Errorf("no release index configured")
	}
	assets, err := p.index.ListAssets(ctx)
	if err != nil {
		return fmt.Errorf("list release assets: %w", err)
	}

	class := "cpu-linux"
	if p.OS == "win" {
		class = "cpu-win"
	}
	asset, ok := findAsset(assets, class)
	if !ok {
		return fmt.Errorf("no swap front-end asset matched class %q", class)
	}
	if err := os.MkdirAll(p.BaseDir, 0o755); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}
	return p.fetchAndExtract(ctx, asset, p.BaseDir)
}

// fetchAndExtract downloads one asset (bounded by perAssetTimeout) and
// extracts it into dir, flattening any build/bin/ prefix and marking
// extracted files executable on non-windows systems (§4.B).
func (p *Provisioner) fetchAndExtract(ctx context.Context, asset ReleaseAsset, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, perAssetTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", asset.Name, err)
	}

	client := http.DefaultClient
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %s", asset.Name, resp.Status)
	}

	tmp, err := os.CreateTemp("", "clarad-asset-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf("write %s: %w", asset.Name, err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind %s: %w", asset.Name, err)
	}

	lower := strings.ToLower(asset.Name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(tmp.Name(), dir)
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		return extractTarGz(tmp, dir)
	default:
		return fmt.Errorf("unsupported archive format for %s", asset.Name)
	}
}

// buildBinPrefix is stripped from archive entry paths so files land
// directly in dir rather than in a build/bin/ subdirectory (§4.B).
const buildBinPrefix = "build/bin/"

func flattenedName(name string) string {
	clean := strings.ReplaceAll(name, "\\", "/")
	if idx := strings.Index(clean, buildBinPrefix); idx >= 0 {
		clean = clean[idx+len(buildBinPrefix):]
	}
	return filepath.Base(clean)
}

func extractZip(archivePath, dir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := flattenedName(f.Name)
		if name == "" {
			continue
		}
		if err := extractZipEntry(f, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(f *zip.File, dst string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, executableMode())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return markExecutable(dst)
}

func extractTarGz(r io.Reader, dir string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("open gzip: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := flattenedName(hdr.Name)
		if name == "" {
			continue
		}
		dst := filepath.Join(dir, name)
		out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, executableMode())
		if err != nil {
			return fmt.Errorf("create %s: %w", dst, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("write %s: %w", dst, err)
		}
		out.Close()
		if err := markExecutable(dst); err != nil {
			return err
		}
	}
}

func executableMode() os.FileMode {
	if runtime.GOOS == "windows" {
		return 0o644
	}
	return 0o755
}

// markExecutable sets the executable bit on non-windows systems (§4.B).
func markExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0o111)
}

// Package projection matches vision-capable chat models to a companion
// projection (mmproj) file (component E).
package projection

import (
	"os"
	"regexp"
	"strings"

	"github.com/clarad/clarad/internal/model"
)

// MappingStore is the subset of the Settings Store the resolver needs.
// An empty store means "no user has ever saved a mapping"; per spec
// §4.E the moment it holds even one entry, heuristics are disabled for
// every model, not just the mapped one.
type MappingStore interface {
	Mappings() map[string]model.ProjectionEntry
}

// visionFamilyTokens names families known to ship with a vision
// projection even when the filename doesn't say "vision" explicitly.
var visionFamilyTokens = []string{"gemma", "llava", "moondream", "qwen"}

var stripPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)mmproj|mm-proj|projection`),
	regexp.MustCompile(`(?i)-instruct|-chat|-it\b`),
	regexp.MustCompile(`(?i)q2_k|q3_k_[msl]|q4_k_[ms]|q4_[01]|q5_k_[ms]|q5_[01]|q6_k|q8_0|f16|f32|iq\d+_\w+`),
	regexp.MustCompile(`[-_.]+`),
}

// normalizeBaseName strips projection/quantization/chat-tuning tokens so
// two filenames describing the same underlying family compare equal.
func normalizeBaseName(filename string) string {
	name := strings.TrimSuffix(filename, ".gguf")
	for _, re := range stripPatterns {
		name = re.ReplaceAllString(name, " ")
	}
	return strings.TrimSpace(strings.Join(strings.Fields(name), ""))
}

// Resolver resolves a companion projection file for vision-capable chat
// models, given a set of candidate projection ModelFiles already found
// by the Scanner.
type Resolver struct {
	store        MappingStore
	fileExists   func(string) bool
	baseDir      string
	bundledGeneric string // absolute path to the bundled generic projection, if any
}

func NewResolver(store MappingStore, baseDir string, bundledGeneric string) *Resolver {
	return &Resolver{
		store:          store,
		fileExists:     defaultFileExists,
		baseDir:        baseDir,
		bundledGeneric: bundledGeneric,
	}
}

func defaultFileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Resolution is the outcome of resolving one main model.
type Resolution struct {
	ProjectionPath string
	ProjectionName string
	Warning        string // non-empty on a heuristic dimension-mismatch fallback
}

// Resolve finds the companion projection for mainModel among the given
// projection candidates, applying the three-step algorithm in §4.E.
func (r *Resolver) Resolve(mainModel model.ModelFile, candidates []model.ModelFile) Resolution {
	if mappings := r.store.Mappings(); len(mappings) > 0 {
		entry, ok := mappings[mainModel.AbsolutePath]
		if !ok || !r.fileExists(entry.ProjectionPath) {
			return Resolution{}
		}
		return Resolution{ProjectionPath: entry.ProjectionPath, ProjectionName: entry.ProjectionName}
	}

	normalizedMain := normalizeBaseName(mainModel.Filename)
	for _, c := range candidates {
		normalizedCandidate := normalizeBaseName(c.Filename)
		if normalizedMain == "" || normalizedCandidate == "" {
			continue
		}
		if normalizedMain == normalizedCandidate ||
			strings.Contains(normalizedMain, normalizedCandidate) ||
			strings.Contains(normalizedCandidate, normalizedMain) {
			return Resolution{ProjectionPath: c.AbsolutePath, ProjectionName: c.DisplayName}
		}
	}

	if isVisionCapableFamily(mainModel.Filename) && r.fileExists(r.bundledGeneric) {
		return Resolution{
			ProjectionPath: r.bundledGeneric,
			ProjectionName: "generic",
			Warning:        "no matching projection found; using bundled generic projection (embedding dimension may not match)",
		}
	}

	return Resolution{}
}

func isVisionCapableFamily(filename string) bool {
	lower := strings.ToLower(filename)
	for _, t := range visionFamilyTokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// DimensionsCompatible reports whether two embedding dimensions match.
// Used only by the UI / diagnostics surface, never by the auto-resolver.
func DimensionsCompatible(a, b int) bool {
	return a == b
}

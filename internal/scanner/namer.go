package scanner

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// fixedOverride is applied before the pattern ladder; the first match wins.
type fixedOverride struct {
	match func(lowerFilename string) bool
	name  string
}

var fixedOverrides = []fixedOverride{
	{
		match: func(f string) bool { return strings.Contains(f, "mxbai") },
		name:  "mxbai-embed-large:embed",
	},
}

// familyPattern recognizes a model family and optional dotted version
// immediately following it (e.g. "llama-3.2-3b" -> family=llama, version=3.2).
type familyPattern struct {
	family string
	re     *regexp.Regexp
}

var familyPatterns = []familyPattern{
	{"llama", regexp.MustCompile(`llama[-_]?(\d+(?:\.\d+)?)?`)},
	{"gemma", regexp.MustCompile(`gemma[-_]?(\d+(?:\.\d+)?)?`)},
	{"qwen", regexp.MustCompile(`qwen[-_]?(\d+(?:\.\d+)?)?`)},
	{"mistral", regexp.MustCompile(`mistral[-_]?(\d+(?:\.\d+)?)?`)},
	{"phi", regexp.MustCompile(`phi[-_]?(\d+(?:\.\d+)?)?`)},
	{"deepseek", regexp.MustCompile(`deepseek[-_]?(\w+)?`)},
	{"tinyllama", regexp.MustCompile(`tinyllama`)},
	{"nomic-embed", regexp.MustCompile(`nomic[-_]?embed`)},
	{"bge", regexp.MustCompile(`bge`)},
	{"e5", regexp.MustCompile(`e5`)},
	{"all-minilm", regexp.MustCompile(`all[-_]?minilm`)},
	{"llava", regexp.MustCompile(`llava`)},
	{"moondream", regexp.MustCompile(`moondream`)},
}

// sizePattern matches a parameter-count token like "3B", "7b", "13B".
var sizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)b(?:[-_.]|$)`)

// quantTokens is Table Q-1, checked longest-match-first so e.g. "q4_k_m"
// is preferred over a looser "q4" prefix.
var quantTokens = []string{
	"q4_k_m", "q4_k_s", "q5_k_m", "q5_k_s", "q6_k", "q8_0",
	"q4_0", "q4_1", "q5_0", "q5_1", "q2_k",
	"q3_k_m", "q3_k_s", "q3_k_l",
	"iq3_xxs", "iq3_xs", "iq3_s", "iq3_m", "iq4_xs", "iq4_nl",
	"f16", "f32", "bitnet", "1.58",
}

var iqGenericRe = regexp.MustCompile(`iq\d+_\w+`)

func init() {
	sort.Slice(quantTokens, func(i, j int) bool { return len(quantTokens[i]) > len(quantTokens[j]) })
}

// extractFamily returns (family, version) from a filename, or ("", "") if
// no known family token is present.
func extractFamily(lower string) (family, version string) {
	for _, fp := range familyPatterns {
		if m := fp.re.FindStringSubmatchIndex(lower); m != nil {
			if len(m) > 3 && m[2] >= 0 {
				version = lower[m[2]:m[3]]
				// Digits directly followed by "b" are the size token
				// (e.g. "qwen-7b"), not a version.
				if m[3] < len(lower) && lower[m[3]] == 'b' {
					version = ""
				}
			}
			return fp.family, version
		}
	}
	return "", ""
}

// extractSize returns the NbB-pattern size token (lowercased, e.g. "3b"),
// or "" if none is present.
func extractSize(lower string) string {
	if m := sizePattern.FindStringSubmatch(lower); m != nil {
		return strings.ToLower(m[1]) + "b"
	}
	return ""
}

// sizeFallback buckets by file size when no NbB token is present.
func sizeFallback(sizeBytes int64) string {
	const gb = 1024 * 1024 * 1024
	switch {
	case sizeBytes <= 0:
		return "unknown"
	case sizeBytes < 3*gb:
		return "small"
	case sizeBytes < 8*gb:
		return "medium"
	default:
		return "large"
	}
}

// extractQuant finds the longest matching Q-1 token in the filename.
func extractQuant(lower string) string {
	normalized := strings.ReplaceAll(lower, "-", "_")
	for _, tok := range quantTokens {
		if strings.Contains(normalized, tok) {
			return tok
		}
	}
	if m := iqGenericRe.FindString(normalized); m != "" {
		return m
	}
	return ""
}

// sizeBucket is the conflict-resolution file-size bucket: xs<1, s<3, m<6,
// l<12, else xl (all GB).
func sizeBucket(sizeBytes int64) string {
	const gb = 1024 * 1024 * 1024
	switch {
	case sizeBytes < 1*gb:
		return "xs"
	case sizeBytes < 3*gb:
		return "s"
	case sizeBytes < 6*gb:
		return "m"
	case sizeBytes < 12*gb:
		return "l"
	default:
		return "xl"
	}
}

// baseName computes the first-pass "family:size" handle for a filename,
// applying fixed overrides first, then the pattern ladder (§4.D).
func baseName(filename string, sizeBytes int64) string {
	lower := strings.ToLower(filename)

	for _, fo := range fixedOverrides {
		if fo.match(lower) {
			return fo.name
		}
	}

	family, version := extractFamily(lower)
	if family == "" {
		family = "unknown"
	}
	if version != "" {
		family = family + version
	}

	size := extractSize(lower)
	if size == "" {
		size = sizeFallback(sizeBytes)
	}

	return fmt.Sprintf("%s:%s", family, size)
}

// Namer assigns globally unique display names across a batch of model
// files, applying the conflict-resolution ladder in §4.D: quantization
// tag, then size bucket, then version index, then a numeric suffix.
type Namer struct{}

// NameInput is the subset of ModelFile fields the namer needs.
type NameInput struct {
	Filename  string
	SizeBytes int64
}

// AssignNames computes a globally-unique display name for every input,
// in the given order, and returns them in the same order.
func (Namer) AssignNames(inputs []NameInput) []string {
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = baseName(in.Filename, in.SizeBytes)
	}

	baseCount := map[string]int{} // base name -> total occurrences across the whole batch
	for _, base := range names {
		baseCount[base]++
	}

	seen := map[string]int{}        // final name -> count
	occurrences := map[string]int{} // base name -> count of prior occurrences
	result := make([]string, len(inputs))

	for i, base := range names {
		name := base
		occurrence := occurrences[base]
		occurrences[base]++

		if baseCount[base] > 1 {
			// Collision: escalate through the resolution ladder.
			lower := strings.ToLower(inputs[i].Filename)
			if q := extractQuant(lower); q != "" {
				name = fmt.Sprintf("%s-%s", base, q)
			}
			if _, exists := seen[name]; exists {
				name = fmt.Sprintf("%s-%s", name, sizeBucket(inputs[i].SizeBytes))
			}
			if _, exists := seen[name]; exists {
				name = fmt.Sprintf("%s-v%d", name, occurrence)
			}
			for {
				if _, exists := seen[name]; !exists {
					break
				}
				occurrence++
				name = fmt.Sprintf("%s-%d", base, occurrence)
			}
		}

		seen[name] = 1
		result[i] = name
	}

	return result
}

// ParseParamCountBillions pulls a rough parameter count in billions from a
// filename's NbB token, used by the Performance Planner's GPU-layer
// estimate (§4.F). Returns 0 if no token is present.
func ParseParamCountBillions(filename string) float64 {
	lower := strings.ToLower(filename)
	m := sizePattern.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

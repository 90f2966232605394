// Package scanner discovers *.gguf files across the user/bundled/custom
// roots, classifies them, and assigns globally unique display names
// (component D). Classification and naming are pure functions over a
// filename/size; Scan ties them to the filesystem.
package scanner

import (
	"strings"

	"github.com/clarad/clarad/internal/model"
)

var projectionTokens = []string{"mmproj", "mm-proj", "projection"}
var embeddingTokens = []string{"embed", "embedding", "mxbai", "nomic", "bge", "e5", "sentence-transformer", "all-minilm"}
var visionTokens = []string{"vl", "vision", "multimodal", "mm", "clip", "siglip"}

// Classify assigns the exclusive Classification for a filename, per
// spec §4.D. Order is significant: projection, then embedding, then
// vision-capable-chat, else chat.
func Classify(filename string) model.Classification {
	lower := strings.ToLower(filename)

	if containsAny(lower, projectionTokens) {
		return model.ClassProjection
	}
	if containsAny(lower, embeddingTokens) {
		return model.ClassEmbedding
	}
	if containsAny(lower, visionTokens) {
		return model.ClassVisionCapableChat
	}
	return model.ClassChat
}

func containsAny(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

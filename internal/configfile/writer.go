package configfile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/clarad/clarad/internal/model"
)

const (
	verifyWait        = 1500 * time.Millisecond
	mismatchExtraWait = 2 * time.Second
	minLengthRatio     = 0.90
)

// Build assembles the Document from a planned model set, grouping each
// model into embedding_models or regular_models per §4.G.
func Build(healthCheckTimeout int, logLevel string, models []PlannedModel) Document {
	doc := Document{
		HealthCheckTimeout: healthCheckTimeout,
		LogLevel:           logLevel,
		Models: OrderedModels{
			Names:   make([]string, 0, len(models)),
			Entries: make(map[string]ModelEntry, len(models)),
		},
		Groups: map[string]GroupSpec{},
	}

	var embeddingMembers, regularMembers []string

	for _, pm := range models {
		doc.Models.Names = append(doc.Models.Names, pm.DisplayName)
		doc.Models.Entries[pm.DisplayName] = ModelEntry{
			Proxy: pm.ProxyAddr,
			Cmd:   BuildCommandLine(pm.ServerBinary, pm.Flags),
			TTL:   pm.TTLSeconds,
		}
		if pm.Classification == model.ClassEmbedding {
			embeddingMembers = append(embeddingMembers, pm.DisplayName)
		} else {
			regularMembers = append(regularMembers, pm.DisplayName)
		}
	}

	doc.Groups[groupEmbedding] = GroupSpec{Swap: false, Exclusive: false, Persistent: true, Members: embeddingMembers}
	doc.Groups[groupRegular] = GroupSpec{Swap: true, Exclusive: true, Members: regularMembers}

	return doc
}

// Write serializes doc to path, then performs the synchronous
// post-write verification in §4.G: re-read the file and assert its
// length is at least 90% of the written buffer; on mismatch, wait an
// additional 2 seconds before declaring success. This guards against OS
// flush latency observed during repeated restart cycles.
func Write(doc Document, path string) error {
	buf, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	time.Sleep(verifyWait)

	readBack, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("verify config: re-read: %w", err)
	}

	if float64(len(readBack)) < float64(len(buf))*minLengthRatio {
		time.Sleep(mismatchExtraWait)
	}

	return nil
}

package configfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clarad/clarad/internal/model"
)

func TestBuildGroupsModelsByClassification(t *testing.T) {
	models := []PlannedModel{
		{DisplayName: "llama3.2:3b", Classification: model.ClassChat, ProxyAddr: "127.0.0.1:9999", ServerBinary: "server", Flags: model.LaunchFlags{ModelPath: "/m/llama.gguf", Port: 9999}},
		{DisplayName: "mxbai-embed-large:embed", Classification: model.ClassEmbedding, ProxyAddr: "127.0.0.1:9998", ServerBinary: "server", Flags: model.LaunchFlags{ModelPath: "/m/mxbai.gguf", Port: 9998, IsEmbedding: true}},
	}

	doc := Build(120, "info", models)

	if len(doc.Groups[groupEmbedding].Members) != 1 || doc.Groups[groupEmbedding].Members[0] != "mxbai-embed-large:embed" {
		t.Errorf("expected embedding group to contain the embedding model, got %+v", doc.Groups[groupEmbedding])
	}
	if !doc.Groups[groupEmbedding].Persistent || doc.Groups[groupEmbedding].Swap || doc.Groups[groupEmbedding].Exclusive {
		t.Errorf("embedding group flags wrong: %+v", doc.Groups[groupEmbedding])
	}
	if !doc.Groups[groupRegular].Swap || !doc.Groups[groupRegular].Exclusive {
		t.Errorf("regular group flags wrong: %+v", doc.Groups[groupRegular])
	}
	if len(doc.Models.Names) != 2 {
		t.Fatalf("expected 2 model entries, got %d", len(doc.Models.Names))
	}
}

func TestWriteThenReadBackSucceeds(t *testing.T) {
	doc := Build(120, "info", []PlannedModel{
		{DisplayName: "llama3.2:3b", Classification: model.ClassChat, ProxyAddr: "127.0.0.1:9999", ServerBinary: "server", Flags: model.LaunchFlags{ModelPath: "/m/llama.gguf", Port: 9999, Threads: 4}},
	})

	path := filepath.Join(t.TempDir(), "llama-swap-config.yaml")
	if err := Write(doc, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "llama3.2:3b") {
		t.Errorf("expected emitted config to contain model name, got:\n%s", data)
	}
	if !strings.Contains(string(data), "healthCheckTimeout: 120") {
		t.Errorf("expected healthCheckTimeout in output, got:\n%s", data)
	}
}

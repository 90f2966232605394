// Package configfile serializes the planned model set into the swap
// proxy's declarative YAML configuration and writes it with the
// write-then-verify pattern the supervisor depends on before spawning
// the proxy (component G).
package configfile

import (
	"gopkg.in/yaml.v3"

	"github.com/clarad/clarad/internal/model"
)

const (
	groupEmbedding = "embedding_models"
	groupRegular   = "regular_models"
)

// ModelEntry is one `models.<name>` document entry.
type ModelEntry struct {
	Proxy string   `yaml:"proxy"`
	Cmd   string   `yaml:"cmd"`
	Env   []string `yaml:"env,omitempty"`
	TTL   int      `yaml:"ttl,omitempty"`
}

// GroupSpec mirrors §4.G's two predefined groups.
type GroupSpec struct {
	Swap       bool     `yaml:"swap"`
	Exclusive  bool     `yaml:"exclusive"`
	Persistent bool     `yaml:"persistent,omitempty"`
	Members    []string `yaml:"members"`
}

// OrderedModels preserves model emission order, since the swap proxy
// config is an "ordered mapping: name -> {...}" (§6) and a plain Go map
// would scramble it on every marshal.
type OrderedModels struct {
	Names   []string
	Entries map[string]ModelEntry
}

// MarshalYAML emits the models in Names order as a YAML mapping node.
func (m OrderedModels) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range m.Names {
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
		var valNode yaml.Node
		if err := valNode.Encode(m.Entries[name]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, &valNode)
	}
	return node, nil
}

// Document is the top-level declarative proxy config (§6).
type Document struct {
	HealthCheckTimeout int                  `yaml:"healthCheckTimeout"`
	LogLevel           string               `yaml:"logLevel"`
	Models             OrderedModels        `yaml:"models"`
	Groups             map[string]GroupSpec `yaml:"groups"`
}

// PlannedModel bundles a resolved model with its launch flags, ready to
// become one Document.Models entry.
type PlannedModel struct {
	DisplayName    string
	Classification model.Classification
	Flags          model.LaunchFlags
	ServerBinary   string
	ProxyAddr      string
	TTLSeconds     int
}

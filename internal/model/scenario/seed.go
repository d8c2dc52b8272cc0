package scenario

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultCatalog []byte

type catalog struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// Seed 返回内置的场景目录。
func Seed() []Scenario {
	items, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded scenario catalog is invalid: %v", err))
	}
	return items
}

// LoadFile 从 YAML 文件读取场景目录。
func LoadFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验 YAML 场景目录。
func Parse(data []byte) ([]Scenario, error) {
	var doc catalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode scenario catalog: %w", err)
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("scenario catalog is empty")
	}

	seen := make(map[string]struct{}, len(doc.Scenarios))
	for i := range doc.Scenarios {
		item := &doc.Scenarios[i]
		item.ID = strings.TrimSpace(item.ID)
		item.Type = strings.ToLower(strings.TrimSpace(item.Type))
		if item.ID == "" {
			return nil, fmt.Errorf("scenario #%d: missing id", i)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("scenario %q: duplicate id", item.ID)
		}
		seen[item.ID] = struct{}{}
		if item.Type != TypeScam && item.Type != TypeLegitimate {
			return nil, fmt.Errorf("scenario %q: unknown type %q", item.ID, item.Type)
		}
		if strings.TrimSpace(item.Opening) == "" {
			return nil, fmt.Errorf("scenario %q: missing opening line", item.ID)
		}
	}
	return doc.Scenarios, nil
}

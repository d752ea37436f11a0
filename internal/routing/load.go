package routing

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// File is the on-disk routing table format.
//
//	rules:
//	  - pattern: "EXCESO DE VELOCIDAD"
//	    entities: [traffic-police]
//	  - pattern: "REGISTRO VEHICULAR"
//	    entities: []
type File struct {
	Rules []Rule `json:"rules"`
}

// Parse decodes a YAML or JSON routing table. Unknown fields are rejected.
func Parse(data []byte) (*Table, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return NewTable(f.Rules)
}

// LoadFile reads and parses the routing table at path.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing table %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load routing table %s: %w", path, err)
	}
	return t, nil
}

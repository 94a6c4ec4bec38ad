package swagger

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// OpenAPI contains the embedded OpenAPI YAML specification.
//
//go:embed openapi.yaml
var OpenAPI []byte

type document struct {
	Paths map[string]map[string]any `yaml:"paths"`
}

// Routes returns the documented "METHOD /path" pairs in sorted order.
func Routes() ([]string, error) {
	var doc document
	if err := yaml.Unmarshal(OpenAPI, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	var out []string
	for path, ops := range doc.Paths {
		for method := range ops {
			out = append(out, fmt.Sprintf("%s %s", method, path))
		}
	}
	sort.Strings(out)
	return out, nil
}

package agents

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Agent roles in workflow order.
const (
	RolePlanner  = "planner"
	RoleSearcher = "searcher"
	RoleAnalyzer = "analyzer"
	RoleCritique = "critique"
	RoleReporter = "reporter"
)

//go:embed roles.yaml
var rolesYAML []byte

// Role describes one hosted agent: its fixed instruction template and the
// schema name its structured output is expected to match.
type Role struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
	Schema      string `yaml:"schema"`
}

// Catalog is the set of configured agent roles keyed by name.
type Catalog map[string]Role

// LoadCatalog parses the embedded role definitions. The catalog is fixed
// at build time; prompt text is data, not code.
func LoadCatalog() (Catalog, error) {
	var doc struct {
		Roles []Role `yaml:"roles"`
	}
	if err := yaml.Unmarshal(rolesYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse role catalog: %w", err)
	}
	catalog := make(Catalog, len(doc.Roles))
	for _, r := range doc.Roles {
		if r.Name == "" {
			return nil, fmt.Errorf("role catalog entry missing name")
		}
		catalog[r.Name] = r
	}
	for _, required := range []string{RolePlanner, RoleSearcher, RoleAnalyzer, RoleCritique, RoleReporter} {
		if _, ok := catalog[required]; !ok {
			return nil, fmt.Errorf("role catalog missing %q", required)
		}
	}
	return catalog, nil
}

package reconcile

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// FieldPolicy pairs a record-store field with its overwrite rule. Fields
// with Overwrite false only ever fill open slots.
type FieldPolicy struct {
	Field     string `yaml:"field"`
	Overwrite bool   `yaml:"overwrite"`
}

// Policy is the ordered set of fields reconciliation manages. Order matters:
// updates run top to bottom so audit logs stay stable across runs.
type Policy struct {
	Fields []FieldPolicy `yaml:"fields"`
}

// Overwrite reports the overwrite rule for a field. Unknown fields are
// conservative: no overwrite.
func (p *Policy) Overwrite(field string) bool {
	for _, fp := range p.Fields {
		if fp.Field == field {
			return fp.Overwrite
		}
	}
	return false
}

// Manages reports whether the policy covers the field at all.
func (p *Policy) Manages(field string) bool {
	for _, fp := range p.Fields {
		if fp.Field == field {
			return true
		}
	}
	return false
}

// DefaultPolicy returns the built-in field policy.
func DefaultPolicy() *Policy {
	p, err := parsePolicy(defaultPolicyYAML)
	if err != nil {
		// The embedded document is validated by tests; reaching this means a
		// broken build.
		panic(err)
	}
	return p
}

// LoadPolicy reads a field policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: read policy file")
	}
	return parsePolicy(data)
}

func parsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "reconcile: parse policy")
	}
	if len(p.Fields) == 0 {
		return nil, eris.New("reconcile: policy has no fields")
	}
	seen := make(map[string]bool, len(p.Fields))
	for _, fp := range p.Fields {
		if fp.Field == "" {
			return nil, eris.New("reconcile: policy has a field with no name")
		}
		if seen[fp.Field] {
			return nil, eris.Errorf("reconcile: duplicate policy field %q", fp.Field)
		}
		seen[fp.Field] = true
	}
	return &p, nil
}

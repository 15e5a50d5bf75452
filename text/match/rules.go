package match

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRules loads matching rules from a YAML file holding a list of
// rules:
//
//	- label: DRUG
//	  regexp: aspirin|paracetamol
//	- label: DOSE
//	  regexp: '[0-9]+ ?mg'
//	  case_sensitive: true
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rules file %s: %w", path, err)
		}
	}
	return rules, nil
}

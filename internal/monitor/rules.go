package monitor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lerian-deadline-engine/pkg/types"
)

// ruleDoc is the on-disk shape of one rule; intervals are written as
// duration strings ("30s", "5m")
type ruleDoc struct {
	Axis          string  `yaml:"axis"`
	Enabled       bool    `yaml:"enabled"`
	Threshold     float64 `yaml:"threshold"`
	CheckInterval string  `yaml:"check_interval"`
}

type rulesFile struct {
	Rules []ruleDoc `yaml:"rules"`
}

// DefaultRules enables every axis with no threshold or interval gating
func DefaultRules() []types.MonitoringRule {
	axes := []types.RiskAxis{
		types.RiskAxisDeadline,
		types.RiskAxisComplexity,
		types.RiskAxisResource,
		types.RiskAxisDependency,
		types.RiskAxisExternal,
	}
	rules := make([]types.MonitoringRule, 0, len(axes))
	for _, axis := range axes {
		rules = append(rules, types.MonitoringRule{Axis: axis, Enabled: true})
	}
	return rules
}

// LoadRules reads monitoring rules from a YAML file. An empty path
// returns the defaults.
func LoadRules(path string) ([]types.MonitoringRule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return parseRules(data, path)
}

func parseRules(data []byte, path string) ([]types.MonitoringRule, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s declares no rules", path)
	}

	rules := make([]types.MonitoringRule, 0, len(file.Rules))
	seen := make(map[types.RiskAxis]bool, len(file.Rules))
	for i, doc := range file.Rules {
		if doc.Axis == "" {
			return nil, fmt.Errorf("rule %d: axis is required", i)
		}
		axis := types.RiskAxis(doc.Axis)
		if seen[axis] {
			return nil, fmt.Errorf("duplicate rule for axis %q", axis)
		}
		seen[axis] = true
		if doc.Threshold < 0 || doc.Threshold > 1 {
			return nil, fmt.Errorf("rule for %q: threshold %.2f outside [0, 1]", axis, doc.Threshold)
		}

		var interval time.Duration
		if doc.CheckInterval != "" {
			parsed, err := time.ParseDuration(doc.CheckInterval)
			if err != nil {
				return nil, fmt.Errorf("rule for %q: bad check interval: %w", axis, err)
			}
			if parsed < 0 {
				return nil, fmt.Errorf("rule for %q: negative check interval %s", axis, parsed)
			}
			interval = parsed
		}
		rules = append(rules, types.MonitoringRule{
			Axis:          axis,
			Enabled:       doc.Enabled,
			Threshold:     doc.Threshold,
			CheckInterval: interval,
		})
	}
	return rules, nil
}

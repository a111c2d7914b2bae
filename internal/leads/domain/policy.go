package domain

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngagementPolicy is the operator-tunable engagement policy, optionally
// loaded from a YAML file. Zero values defer to configuration defaults.
type EngagementPolicy struct {
	MaxAttempts  int             `yaml:"maxAttempts"`
	RetryDelays  []time.Duration `yaml:"retryDelays"`
	RepeatLast   bool            `yaml:"repeatLast"`
	ChatEnabled  *bool           `yaml:"chatEnabled"`
	EmailEnabled *bool           `yaml:"emailEnabled"`
}

// LoadPolicyFile reads an EngagementPolicy from a YAML file.
func LoadPolicyFile(path string) (*EngagementPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var p EngagementPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if p.MaxAttempts < 0 {
		return nil, fmt.Errorf("policy maxAttempts must not be negative")
	}
	for _, d := range p.RetryDelays {
		if d <= 0 {
			return nil, fmt.Errorf("policy retry delays must be positive")
		}
	}
	return &p, nil
}

// RetryPolicy builds the effective RetryPolicy from this policy layered on
// top of the given defaults.
func (p *EngagementPolicy) RetryPolicy(base RetryPolicy) RetryPolicy {
	out := base
	if p == nil {
		return out
	}
	if p.MaxAttempts > 0 {
		out.MaxAttempts = p.MaxAttempts
	}
	if len(p.RetryDelays) > 0 {
		out.Delays = p.RetryDelays
	}
	if p.RepeatLast {
		out.RepeatLast = true
	}
	return out
}

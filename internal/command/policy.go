package command

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/keshon/rickbot/internal/permission"
)

// Policy overrides the registered policy of one command. Zero fields keep the
// registered value.
type Policy struct {
	Tier     *permission.Tier `yaml:"tier"`
	Cooldown time.Duration    `yaml:"cooldown"`
	MaxUses  int              `yaml:"max_uses"`
}

// PolicyFile is the on-disk shape of a policy override file:
//
//	commands:
//	  ping:
//	    cooldown: 5s
//	    max_uses: 2
//	  modrole:
//	    tier: moderator
type PolicyFile struct {
	Commands map[string]Policy `yaml:"commands"`
}

// LoadPolicies reads a YAML policy file.
func LoadPolicies(path string) (map[string]Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicies(data)
}

// ParsePolicies decodes YAML policy overrides.
func ParsePolicies(data []byte) (map[string]Policy, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	out := make(map[string]Policy, len(pf.Commands))
	for name, p := range pf.Commands {
		out[strings.ToLower(name)] = p
	}
	return out, nil
}

// ApplyPolicies overrides registered descriptors. Unknown command names are
// reported by Build so a typo in the file does not pass silently.
func (b *Builder) ApplyPolicies(policies map[string]Policy) *Builder {
	seen := make(map[string]bool, len(policies))
	for _, d := range b.descs {
		p, ok := policies[d.Name()]
		if !ok {
			continue
		}
		seen[d.Name()] = true
		if p.Tier != nil {
			d.Tier = *p.Tier
		}
		if p.Cooldown != 0 {
			d.Cooldown = p.Cooldown
		}
		if p.MaxUses != 0 {
			d.MaxUses = p.MaxUses
		}
	}
	for name := range policies {
		if !seen[name] {
			b.errs = append(b.errs, fmt.Errorf("policy for unknown command %q", name))
		}
	}
	return b
}

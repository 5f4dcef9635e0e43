package config

import "fmt"

// Built-in agent profiles. A config file entry with the same name overrides
// the built-in completely.
var builtinAgents = map[string]*AgentProfile{
	"claude": {
		Command: "claude",
		Args:    []string{"--print", "--verbose", "--output-format", "stream-json"},
	},
	"codex": {
		Command: "codex",
		Args:    []string{"exec", "--json"},
	},
}

// ResolveAgent picks the agent profile for name, falling back to the
// config default and then to the built-in claude profile.
func ResolveAgent(s *Settings, name string) (*AgentProfile, error) {
	if name == "" {
		name = s.DefaultAgent
	}
	if name == "" {
		name = "claude"
	}
	if p, ok := s.Agents[name]; ok {
		if err := validateAgent(name, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if p, ok := builtinAgents[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown agent %q: not in config and no built-in", name)
}

func validateAgent(name string, p *AgentProfile) error {
	if p == nil {
		return fmt.Errorf("agent %q: empty profile", name)
	}
	if p.Command == "" {
		return fmt.Errorf("agent %q: command is required", name)
	}
	return nil
}

// BuildArgv assembles the full command line with the question as the final
// argument.
func BuildArgv(p *AgentProfile, question string) []string {
	argv := make([]string, 0, len(p.Args)+2)
	argv = append(argv, p.Command)
	argv = append(argv, p.Args...)
	argv = append(argv, question)
	return argv
}

// BuildEnv layers the profile's env entries on top of base.
func BuildEnv(p *AgentProfile, base []string) []string {
	env := make([]string, len(base), len(base)+len(p.Env))
	copy(env, base)
	for k, v := range p.Env {
		env = append(env, k+"="+v)
	}
	return env
}

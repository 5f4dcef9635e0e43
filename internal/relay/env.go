package relay

import (
	"os"
	"strings"
)

// sensitiveEnvPrefixes are env var name prefixes stripped from the agent
// environment. Prevents credential exfiltration via shell builtins or agent
// tool calls that dump the environment.
var sensitiveEnvPrefixes = []string{
	"ASKFORGE_",
	"OPENAI_API",
	"ANTHROPIC_API",
	"GROQ_API",
	"TELEGRAM_BOT",
	"AWS_SECRET",
	"AWS_SESSION",
	"GITHUB_TOKEN",
}

// sensitiveEnvExact are env var names stripped by exact match.
var sensitiveEnvExact = []string{
	"API_KEY",
	"API_SECRET",
	"SECRET_KEY",
}

// SanitizedEnv returns os.Environ() with sensitive variables removed.
// Callers building Options.Env must use this instead of os.Environ().
func SanitizedEnv() []string {
	return sanitizeEnv(os.Environ())
}

func sanitizeEnv(environ []string) []string {
	clean := make([]string, 0, len(environ))
	for _, entry := range environ {
		name, _, ok := strings.Cut(entry, "=")
		if ok && sensitiveEnvName(strings.ToUpper(name)) {
			continue
		}
		clean = append(clean, entry)
	}
	return clean
}

func sensitiveEnvName(name string) bool {
	for _, prefix := range sensitiveEnvPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	for _, exact := range sensitiveEnvExact {
		if name == exact {
			return true
		}
	}
	return false
}

package prompt

import (
	_ "embed"
	"strings"
	"time"
)

//go:embed template/system.txt
var systemRaw string

// PromptSet holds loaded prompt content.
type PromptSet struct {
	System string
}

// LoadPromptSet returns the embedded prompts, trimmed.
func LoadPromptSet() PromptSet {
	return PromptSet{
		System: strings.TrimSpace(systemRaw),
	}
}

// SystemFor renders the system prompt for a request made at now.
func (p PromptSet) SystemFor(now time.Time) string {
	return strings.ReplaceAll(p.System, "{date}", now.UTC().Format("2006-01-02"))
}

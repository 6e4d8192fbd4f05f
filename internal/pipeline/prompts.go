package pipeline

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/company-research/internal/model"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompts holds every LLM prompt template used by the pipeline. Templates
// use {name} placeholders filled by render.
type Prompts struct {
	QuerySystem     string `yaml:"query_system"`
	QueryUser       string `yaml:"query_user"`
	QueryGuidelines string `yaml:"query_guidelines"`

	Queries map[string]string `yaml:"queries"`

	BriefingInstruction string            `yaml:"briefing_instruction"`
	Briefings           map[string]string `yaml:"briefings"`

	EditorSystem string `yaml:"editor_system"`
	Compile      string `yaml:"compile"`
	SweepSystem  string `yaml:"sweep_system"`
	Sweep        string `yaml:"sweep"`
}

// LoadPrompts parses the embedded prompt templates.
func LoadPrompts() (*Prompts, error) {
	var p Prompts
	if err := yaml.Unmarshal(promptsYAML, &p); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse prompts")
	}
	for _, cat := range model.Categories() {
		if p.Queries[string(cat)] == "" {
			return nil, eris.Errorf("pipeline: missing query prompt for category %s", cat)
		}
		if p.Briefings[string(cat)] == "" {
			return nil, eris.Errorf("pipeline: missing briefing prompt for category %s", cat)
		}
	}
	return &p, nil
}

// render substitutes {key} placeholders in a template. Unknown placeholders
// are left as-is so a prompt that does not use every variable still works.
func render(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

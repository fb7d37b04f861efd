package rule

// yamlRule maps one YAML rule entry onto Rule.
type yamlRule struct {
	Name             string   `yaml:"name"`
	ID               string   `yaml:"id"`
	Provider         string   `yaml:"provider"`
	Pattern          string   `yaml:"pattern"`
	Keywords         []string `yaml:"keywords,omitempty"`
	ContextKeywords  []string `yaml:"context_keywords,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`
	NegativeExamples []string `yaml:"negative_examples,omitempty"`
	References       []string `yaml:"references,omitempty"`
}

// yamlRulesFile is the top-level structure of a rules YAML file: a single
// "rules" array.
type yamlRulesFile struct {
	Rules []yamlRule `yaml:"rules"`
}

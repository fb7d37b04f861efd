package rule

import "embed"

// builtinRulesFS embeds the built-in provider rules.
//
//go:embed rules/*.yml
var builtinRulesFS embed.FS

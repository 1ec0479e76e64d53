package rules

// DefaultDocument returns the built-in rule set used whenever the
// configured rules file is missing or fails validation. Kept as data so
// the loader can fall back without touching disk.
func DefaultDocument() *Document {
	return &Document{
		Version: 1,
		Purpose: PurposeGroup{
			Fallback: "Utility",
			Rules: []Rule{
				{Conditions: []string{"kind == 'component'"}, Label: "Component", Confidence: 0.95},
				{Conditions: []string{"name starts with 'use'", "kind == 'arrow'"}, Label: "Hook", Confidence: 0.9},
				{Conditions: []string{"name matches /^(get|fetch|load|find)[A-Z]/"}, Label: "Data Access", Confidence: 0.85},
				{Conditions: []string{"name matches /^(create|update|delete|save|insert)[A-Z]/"}, Label: "Data Mutation", Confidence: 0.85},
				{Conditions: []string{"name starts with 'handle'"}, Label: "Event Handler", Confidence: 0.85},
				{Conditions: []string{"name starts with 'on'", "name starts with 'handle'"}, Label: "Event Handler", Confidence: 0.7},
				{Conditions: []string{"name contains 'validate'"}, Label: "Validation", Confidence: 0.85},
				{Conditions: []string{"name contains 'render'"}, Label: "Rendering", Confidence: 0.8},
				{Conditions: []string{"name matches /^(format|parse|serialize|transform|convert)/"}, Label: "Transformation", Confidence: 0.8},
				{Conditions: []string{"path contains 'middleware'"}, Label: "Middleware", Confidence: 0.8},
				{Conditions: []string{"path contains 'api'", "name matches /^(get|post|put|patch|delete)/"}, Label: "API Endpoint", Confidence: 0.85},
				{Conditions: []string{"file ends with '.test.ts'", "file ends with '.spec.ts'"}, Label: "Test", Confidence: 0.95},
				{Conditions: []string{"imports contain 'react'", "name matches /^[A-Z]/"}, Label: "Component", Confidence: 0.75},
				{Conditions: []string{"file contains 'config'"}, Label: "Configuration", Confidence: 0.7},
			},
		},
		Bundles: BundleGroup{
			Rules: []Rule{
				{
					Conditions: []string{"path contains 'auth'"},
					Label:      "authentication",
					Confidence: 0.9,
					SubRules: []Rule{
						{Conditions: []string{"file contains 'token'"}, Label: "session-management", Confidence: 0.8},
					},
				},
				{
					Conditions: []string{"path contains 'api'"},
					Label:      "api-layer",
					Confidence: 0.85,
					SubRules: []Rule{
						{Conditions: []string{"file contains 'client'"}, Label: "api-client", Confidence: 0.8},
						{Conditions: []string{"file contains 'route'"}, Label: "api-routes", Confidence: 0.8},
					},
				},
				{Conditions: []string{"path contains 'components'"}, Label: "ui-components", Confidence: 0.85},
				{Conditions: []string{"path contains 'hooks'"}, Label: "react-hooks", Confidence: 0.85},
				{Conditions: []string{"path contains 'models'"}, Label: "data-models", Confidence: 0.85},
				{Conditions: []string{"path contains 'utils'"}, Label: "utilities", Confidence: 0.7},
				{Conditions: []string{"file ends with '.test.ts'", "file ends with '.test.tsx'"}, Label: "tests", Confidence: 0.9},
			},
			Fallback: BundleFallback{
				PathRules: []Rule{
					{Conditions: []string{"path contains 'src'"}, Label: "core", Confidence: 0.5},
				},
				DefaultLabels: []string{"uncategorized"},
			},
		},
		Clusters: map[string]string{
			"Component":     "ui",
			"Hook":          "ui",
			"Rendering":     "ui",
			"Data Access":   "data",
			"Data Mutation": "data",
			"API Endpoint":  "transport",
			"Middleware":    "transport",
			"Event Handler": "interaction",
			"Validation":    "integrity",
			"Test":          "quality",
		},
	}
}

// DefaultConfig compiles the built-in document. The defaults are fixed
// and valid, so compilation never produces warnings.
func DefaultConfig() *Config {
	cfg, _ := Compile(DefaultDocument())
	return cfg
}

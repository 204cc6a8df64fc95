package server

// PluginManifest is the assistant plugin descriptor served at
// /.well-known/ai-plugin.json.
type PluginManifest struct {
	SchemaVersion       string         `json:"schema_version"`
	NameForHuman        string         `json:"name_for_human"`
	NameForModel        string         `json:"name_for_model"`
	DescriptionForHuman string         `json:"description_for_human"`
	DescriptionForModel string         `json:"description_for_model"`
	Auth                map[string]any `json:"auth"`
	API                 PluginAPI      `json:"api"`
}

type PluginAPI struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func newPluginManifest(baseURL string) PluginManifest {
	return PluginManifest{
		SchemaVersion:       "v1",
		NameForHuman:        "smolex",
		NameForModel:        "smolex",
		DescriptionForHuman: "Look up classes and functions of your codebase.",
		DescriptionForModel: "Look up the interface or the source code of existing classes, methods and functions " +
			"in the user's codebase before writing code that uses them.",
		Auth: map[string]any{"type": "none"},
		API: PluginAPI{
			Type: "openapi",
			URL:  baseURL + "/openapi.yaml",
		},
	}
}

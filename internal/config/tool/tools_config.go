package tool

// ToolsConfig groups tool-level settings.
type ToolsConfig struct {
	// Builtins registers the in-process echo and time tools at startup.
	Builtins bool `json:"builtins" yaml:"builtins"`
}

func DefaultToolConfigs() ToolsConfig {
	return ToolsConfig{Builtins: true}
}

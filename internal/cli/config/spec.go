package config

import "sort"

// CLIConfig is the content of cli.yaml.
type CLIConfig struct {
	// Current names the profile used when --profile is not given.
	Current string `yaml:"current,omitempty"`
	// Output is the default output format.
	Output string `yaml:"output,omitempty"`

	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// Profile is one saved server target.
type Profile struct {
	Server     string `yaml:"server"`
	BasePath   string `yaml:"base_path,omitempty"`
	NotifyPath string `yaml:"notify_path,omitempty"`
}

// Default returns an empty configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Profiles: make(map[string]Profile),
	}
}

// Profile returns the named profile, or the current one when name is
// empty. ok is false when no profile applies.
func (c *CLIConfig) Profile(name string) (Profile, bool) {
	if name == "" {
		name = c.Current
	}
	if name == "" {
		return Profile{}, false
	}
	p, ok := c.Profiles[name]
	return p, ok
}

// Names returns the profile names in sorted order.
func (c *CLIConfig) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

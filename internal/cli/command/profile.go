package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapql/internal/cli/config"
	"github.com/yndnr/snapql/internal/cli/connection"
	"github.com/yndnr/snapql/internal/cli/output"
)

type profileView struct {
	Name       string `json:"name" yaml:"name"`
	Server     string `json:"server" yaml:"server"`
	BasePath   string `json:"base_path,omitempty" yaml:"base_path,omitempty"`
	NotifyPath string `json:"notify_path,omitempty" yaml:"notify_path,omitempty"`
	Current    bool   `json:"current" yaml:"current"`
}

// ProfileCommand returns the profile command group.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved server profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List profiles",
				Action: runProfileList,
			},
			{
				Name:      "set",
				Usage:     "Create or update a profile",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Usage: "Server address", Required: true},
					&cli.StringFlag{Name: "base-path", Usage: "Application scope"},
					&cli.StringFlag{Name: "notify-path", Usage: "Notification WebSocket path"},
					&cli.BoolFlag{Name: "use", Usage: "Make it the current profile"},
				},
				Action: runProfileSet,
			},
			{
				Name:      "use",
				Usage:     "Select the current profile",
				ArgsUsage: "NAME",
				Action:    runProfileUse,
			},
			{
				Name:      "delete",
				Usage:     "Remove a profile",
				ArgsUsage: "NAME",
				Action:    runProfileDelete,
			},
		},
	}
}

func runProfileList(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	views := make([]profileView, 0, len(cfg.Profiles))
	for _, name := range cfg.Names() {
		p := cfg.Profiles[name]
		views = append(views, profileView{
			Name:       name,
			Server:     p.Server,
			BasePath:   p.BasePath,
			NotifyPath: p.NotifyPath,
			Current:    name == cfg.Current,
		})
	}

	if ParseGlobalFlags(c).Output != output.FormatTable {
		return render(c, views)
	}

	t := &output.Table{Headers: []string{"", "NAME", "SERVER", "BASE PATH", "NOTIFY PATH"}}
	for _, v := range views {
		mark := ""
		if v.Current {
			mark = "*"
		}
		t.AddRow(mark, v.Name, v.Server, orDash(v.BasePath), orDash(v.NotifyPath))
	}
	return render(c, t)
}

func runProfileSet(c *cli.Context) error {
	name, err := profileName(c)
	if err != nil {
		return err
	}
	if _, err := connection.ServerURL(c.String("server")); err != nil {
		return err
	}

	return updateConfig(c, func(cfg *config.CLIConfig) error {
		cfg.Profiles[name] = config.Profile{
			Server:     c.String("server"),
			BasePath:   c.String("base-path"),
			NotifyPath: c.String("notify-path"),
		}
		if c.Bool("use") || cfg.Current == "" {
			cfg.Current = name
		}
		return nil
	})
}

func runProfileUse(c *cli.Context) error {
	name, err := profileName(c)
	if err != nil {
		return err
	}
	return updateConfig(c, func(cfg *config.CLIConfig) error {
		if _, ok := cfg.Profiles[name]; !ok {
			return fmt.Errorf("unknown profile %q", name)
		}
		cfg.Current = name
		return nil
	})
}

func runProfileDelete(c *cli.Context) error {
	name, err := profileName(c)
	if err != nil {
		return err
	}
	return updateConfig(c, func(cfg *config.CLIConfig) error {
		if _, ok := cfg.Profiles[name]; !ok {
			return fmt.Errorf("unknown profile %q", name)
		}
		delete(cfg.Profiles, name)
		if cfg.Current == name {
			cfg.Current = ""
		}
		return nil
	})
}

func profileName(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected one profile NAME, got %d arguments", c.NArg())
	}
	return c.Args().First(), nil
}

func updateConfig(c *cli.Context, fn func(*config.CLIConfig) error) error {
	path := c.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := fn(cfg); err != nil {
		return err
	}
	return config.Save(cfg, path)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package command

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapql/internal/cli/config"
	"github.com/yndnr/snapql/internal/cli/connection"
	"github.com/yndnr/snapql/internal/cli/output"
	"github.com/yndnr/snapql/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "snapql-cli",
		Usage:   "Query and manage a snapql server",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			QueryCommand(),
			ReadyCommand(),
			WatchCommand(),
			ShellCommand(),
			ProfileCommand(),
			SealCommand(),
			UnsealCommand(),
		},
		Before: func(c *cli.Context) error {
			if err := applyProfile(c); err != nil {
				return err
			}
			_, err := output.ParseFormat(c.String("output"))
			return err
		},
	}
}

// applyProfile fills global flags the user did not set from cli.yaml.
func applyProfile(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	name := c.String("profile")
	p, ok := cfg.Profile(name)
	if !ok && name != "" {
		return fmt.Errorf("unknown profile %q", name)
	}

	defaults := map[string]string{"output": cfg.Output}
	if ok {
		defaults["server"] = p.Server
		defaults["base-path"] = p.BasePath
		defaults["notify-path"] = p.NotifyPath
	}
	for flag, value := range defaults {
		if value == "" || c.IsSet(flag) {
			continue
		}
		if err := c.Set(flag, value); err != nil {
			return err
		}
	}
	return nil
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "CLI config file",
			EnvVars: []string{config.EnvConfigPath},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"P"},
			Usage:   "Profile from the CLI config file",
			EnvVars: []string{"SNAPQL_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "snapql server address (e.g., localhost:5080)",
			EnvVars: []string{"SNAPQL_SERVER"},
			Value:   "localhost:5080",
		},
		&cli.StringFlag{
			Name:    "base-path",
			Aliases: []string{"b"},
			Usage:   "Application scope the api path resolves against",
			EnvVars: []string{"SNAPQL_BASE_PATH"},
			Value:   "/",
		},
		&cli.StringFlag{
			Name:    "notify-path",
			Usage:   "Notification WebSocket path",
			EnvVars: []string{"SNAPQL_NOTIFY_PATH"},
			Value:   "/__snapql/ws",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:  "no-headers",
			Usage: "Omit the header line in table output",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: connection.DefaultTimeout,
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server     string
	BasePath   string
	NotifyPath string
	Output     output.Format
	NoHeaders  bool
	Timeout    time.Duration
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	format, _ := output.ParseFormat(c.String("output"))
	return &GlobalFlags{
		Server:     c.String("server"),
		BasePath:   c.String("base-path"),
		NotifyPath: c.String("notify-path"),
		Output:     format,
		NoHeaders:  c.Bool("no-headers"),
		Timeout:    c.Duration("timeout"),
	}
}

// newClient builds the HTTP client from the global flags.
func newClient(c *cli.Context) (*connection.Client, error) {
	flags := ParseGlobalFlags(c)
	return connection.NewClient(flags.Server, flags.BasePath, flags.Timeout)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags := ParseGlobalFlags(c)

	formatter := output.NewFormatter(flags.Output)
	if tf, ok := formatter.(*output.TableFormatter); ok {
		tf.NoHeaders = flags.NoHeaders
	}
	return formatter.Format(stdout(c), data)
}

func stdin(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// PrintError prints an error message to stderr.
func PrintError(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "error: "+format+"\n", args...)
}

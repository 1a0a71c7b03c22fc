package command

import (
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapql/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run SQL interactively against the snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "History file (empty disables persistence)",
			},
		},
		Action: runShell,
	}
}

func runShell(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}

	history := filepath.Join(filepath.Dir(c.String("config")), "history")
	if c.IsSet("history") {
		history = c.String("history")
	}

	flags := ParseGlobalFlags(c)
	in := stdin(c)
	_, interactive := terminalFd(in)
	r := repl.New(client,
		repl.WithIO(in, stdout(c)),
		repl.WithPrompt(interactive),
		repl.WithHistory(repl.NewHistory(history)),
		repl.WithFormat(flags.Output, flags.NoHeaders),
	)
	return r.Run(c.Context)
}

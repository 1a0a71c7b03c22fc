package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// readyStatus is what the ready command prints.
type readyStatus struct {
	Ready bool   `json:"ready" yaml:"ready"`
	API   string `json:"api" yaml:"api"`
}

// ReadyCommand returns the ready command.
func ReadyCommand() *cli.Command {
	return &cli.Command{
		Name:  "ready",
		Usage: "Show whether the server has loaded its snapshot",
		Description: `Asking triggers the load when it has not happened yet. The command
exits non-zero while the snapshot is not ready.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "wait",
				Usage: "Keep asking until ready or until this much time has passed",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "Delay between attempts with --wait",
				Value: time.Second,
			},
		},
		Action: runReady,
	}
}

func runReady(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}

	ctx := c.Context
	if wait := c.Duration("wait"); wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}

	ready, err := pollReady(ctx, c.Duration("wait") > 0, c.Duration("interval"), client.Ready)
	if err != nil {
		return fmt.Errorf("readiness check failed: %w", err)
	}

	if err := render(c, readyStatus{Ready: ready, API: client.APIURL()}); err != nil {
		return err
	}
	if !ready {
		return cli.Exit("", 1)
	}
	return nil
}

// pollReady asks once, or repeatedly until ready when wait is set. The
// last answer is returned when ctx runs out.
func pollReady(ctx context.Context, wait bool, interval time.Duration, ask func(context.Context) (bool, error)) (bool, error) {
	for {
		ready, err := ask(ctx)
		if err != nil && !wait {
			return false, err
		}
		if ready || !wait {
			return ready, nil
		}

		select {
		case <-ctx.Done():
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return false, err
			}
			return false, nil
		case <-time.After(interval):
		}
	}
}

package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapql/internal/cli/connection"
	"github.com/yndnr/snapql/internal/core/domain"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow the notification channel",
		Description: `Connects to the notification WebSocket, sends PING_DB and prints every
DB_READY / DB_ERROR message until --for elapses or --count messages arrived.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "for",
				Usage: "How long to listen",
				Value: 5 * time.Second,
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Stop after this many messages (0 = unlimited)",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "no-ping",
				Usage: "Only listen, do not send PING_DB",
			},
		},
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	server, err := connection.ServerURL(flags.Server)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("for"))
	defer cancel()

	conn, err := connection.DialNotify(ctx, server, flags.NotifyPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !c.Bool("no-ping") {
		if err := conn.Ping(ctx); err != nil {
			return fmt.Errorf("send ping: %w", err)
		}
	}

	limit := c.Int("count")
	for received := 0; limit <= 0 || received < limit; received++ {
		msg, err := conn.Next(ctx)
		if errors.Is(err, connection.ErrNoMessage) {
			if received == 0 {
				return cli.Exit("no message received", 1)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		if err := printMessage(c, msg); err != nil {
			return err
		}
	}
	return nil
}

// printMessage renders one notification. Table output is a single line.
func printMessage(c *cli.Context, msg domain.Message) error {
	if ParseGlobalFlags(c).Output != "table" {
		return render(c, msg)
	}

	line := string(msg.Type)
	if msg.Error != "" {
		line += ": " + msg.Error
	}
	_, err := fmt.Fprintln(stdout(c), line)
	return err
}

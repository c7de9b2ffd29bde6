package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dm/gridmon/internal/config"
	"github.com/dm/gridmon/internal/retriever"
	"github.com/dm/gridmon/internal/sender"
)

// entitiesCmd lists the registered entity types. It needs no agent.
func entitiesCmd() *cli.Command {
	return &cli.Command{
		Name:  "entities",
		Usage: "List the entity types gridmon can collect",
		Flags: []cli.Flag{formatFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Default()
			if cmd.IsSet("format") {
				cfg.Output.Format = cmd.String("format")
			}
			w, err := newWriter(cmd, cfg)
			if err != nil {
				return err
			}
			reg := retriever.DefaultRegistry()
			var rows [][]string
			for _, r := range reg.All() {
				report := "-"
				if r.SupportsReport() {
					report = r.Report().Name
				}
				rows = append(rows, []string{
					string(r.Entity()),
					report,
					strconv.Itoa(r.Schema().Width()),
					strings.Join(r.Schema().Names(), ","),
				})
			}
			return w.WriteRows([]string{"Entity", "Report", "Width", "Columns"}, rows)
		},
	}
}

// withSender loads the configuration, builds a client and runs fn.
func withSender(fn func(ctx context.Context, cmd *cli.Command, cfg *config.Config, s sender.RequestSender) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := newClient(cfg)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, cfg, c)
	}
}

func heapDumpCmd() *cli.Command {
	return &cli.Command{
		Name:      "heap-dump",
		Usage:     "Ask cluster members to write a heap dump",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "role",
				Usage: "only members with this role (default all members)",
			},
		},
		Action: withSender(func(ctx context.Context, cmd *cli.Command, _ *config.Config, s sender.RequestSender) error {
			if err := sender.DumpClusterHeap(ctx, s, cmd.String("role")); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.Root().Writer, "heap dump requested")
			return err
		}),
	}
}

func snapshotsCmd() *cli.Command {
	return &cli.Command{
		Name:      "snapshots",
		Usage:     "List persistence snapshots of a service",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			serviceFlag(),
			partitionFlag(),
			&cli.BoolFlag{
				Name:  "archived",
				Usage: "list archived snapshots instead",
			},
			formatFlag(),
		},
		Action: withSender(func(ctx context.Context, cmd *cli.Command, cfg *config.Config, s sender.RequestSender) error {
			list := sender.Snapshots
			if cmd.Bool("archived") {
				list = sender.ArchivedSnapshots
			}
			names, err := list(ctx, s, cmd.String("service"), cmd.String("partition"))
			if err != nil {
				return err
			}
			w, err := newWriter(cmd, cfg)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(names))
			for _, n := range names {
				rows = append(rows, []string{n})
			}
			return w.WriteRows([]string{"Snapshot"}, rows)
		}),
	}
}

func persistenceCmd() *cli.Command {
	return &cli.Command{
		Name:      "persistence",
		Usage:     "Run a persistence operation on a service",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			serviceFlag(),
			partitionFlag(),
			&cli.StringFlag{
				Name:     "operation",
				Usage:    fmt.Sprintf("operation %v", sender.PersistenceOperations),
				Required: true,
				Validator: func(op string) error {
					if !slices.Contains(sender.PersistenceOperations, op) {
						return fmt.Errorf("unknown persistence operation %q", op)
					}
					return nil
				},
			},
			&cli.StringFlag{
				Name:  "snapshot",
				Usage: "snapshot name",
			},
		},
		Action: withSender(func(ctx context.Context, cmd *cli.Command, _ *config.Config, s sender.RequestSender) error {
			op := cmd.String("operation")
			if err := sender.ExecutePersistenceOperation(ctx, s,
				cmd.String("service"), cmd.String("partition"), op, cmd.String("snapshot")); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.Root().Writer, "%s invoked on %s\n", op, cmd.String("service"))
			return err
		}),
	}
}

func federationCmd() *cli.Command {
	return &cli.Command{
		Name:      "federation",
		Usage:     "Run a federation operation on a service",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			serviceFlag(),
			&cli.StringFlag{
				Name:     "operation",
				Usage:    fmt.Sprintf("operation %v", sender.FederationOperations),
				Required: true,
				Validator: func(op string) error {
					if !slices.Contains(sender.FederationOperations, op) {
						return fmt.Errorf("unknown federation operation %q", op)
					}
					return nil
				},
			},
			&cli.StringFlag{
				Name:  "participant",
				Usage: "limit the operation to one participant",
			},
		},
		Action: withSender(func(ctx context.Context, cmd *cli.Command, _ *config.Config, s sender.RequestSender) error {
			op := cmd.String("operation")
			if err := sender.InvokeFederationOperation(ctx, s,
				cmd.String("service"), op, cmd.String("participant")); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.Root().Writer, "%s invoked on %s\n", op, cmd.String("service"))
			return err
		}),
	}
}

func nodeStateCmd() *cli.Command {
	return &cli.Command{
		Name:      "node-state",
		Usage:     "Print the state report of one cluster member",
		ArgsUsage: "[url]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "node",
				Usage:    "member node id",
				Required: true,
			},
		},
		Action: withSender(func(ctx context.Context, cmd *cli.Command, _ *config.Config, s sender.RequestSender) error {
			state, err := sender.NodeState(ctx, s, cmd.Int("node"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, state)
			return err
		}),
	}
}

func serviceFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "service",
		Usage:    "service name",
		Required: true,
	}
}

func partitionFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "partition",
		Usage: "domain partition (multi-tenant clusters only)",
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"

	"github.com/ctfer-io/lfs-station/global"
	"github.com/ctfer-io/lfs-station/pkg/fs"
)

type cliFlashKey struct{}
type cliPartKey struct{}

func main() {
	cmd := &cli.Command{
		Name:  "lfs-station-cli",
		Usage: "Run single filesystem operations against a partition laid out on disk.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Sources:     cli.EnvVars("DIR"),
				Value:       "/tmp/lfs-station",
				Destination: &global.Conf.Directory,
				Usage:       "The directory partitions are laid out in.",
			},
			&cli.StringFlag{
				Name:        "partitions",
				Sources:     cli.EnvVars("PARTITIONS"),
				Destination: &global.Conf.Flash.PartitionsFile,
				Usage:       "The YAML partition table. Defaults to spiffs (/littlefs) and part2 (/lfs2).",
			},
			&cli.StringFlag{
				Name:    "partition",
				Aliases: []string{"p"},
				Value:   "spiffs",
				Usage:   "The name of the partition to operate on.",
			},
			&cli.BoolFlag{
				Name:        "format-if-failed",
				Destination: &global.Conf.Flash.FormatIfFailed,
				Usage:       "If set, formats the partition if it fails to mount.",
			},
			&cli.StringFlag{
				Name:        "log-level",
				Value:       "error",
				Destination: &global.Conf.LogLevel,
				Usage:       "Use to specify the level of logging.",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			tbl := fs.DefaultTable()
			if pf := global.Conf.Flash.PartitionsFile; pf != "" {
				var err error
				tbl, err = fs.LoadTable(pf)
				if err != nil {
					return ctx, err
				}
			}
			p, err := tbl.Lookup(cmd.String("partition"))
			if err != nil {
				return ctx, err
			}
			flash, err := fs.NewOSFlash(global.FlashDir())
			if err != nil {
				return ctx, err
			}

			ctx = context.WithValue(ctx, cliFlashKey{}, flash)
			ctx = context.WithValue(ctx, cliPartKey{}, p)
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List a directory.",
				ArgsUsage: "[dir]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "levels",
						Aliases: []string{"l"},
						Value:   0,
						Usage:   "How many levels of sub-directories to recurse into.",
					},
				},
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) error {
					dir := cmd.Args().First()
					if dir == "" {
						dir = "/"
					}
					entries, err := m.ListDir(ctx, dir, cmd.Int("levels"))
					if err != nil {
						return err
					}
					for _, e := range entries {
						indent := strings.Repeat("  ", e.Depth)
						if e.IsDir {
							fmt.Printf("%sDIR : %s\n", indent, e.Path)
							continue
						}
						fmt.Printf("%sFILE: %s\tSIZE: %d\n", indent, e.Path, e.Size)
					}
					return nil
				}),
			}, {
				Name:      "cat",
				Usage:     "Print the content of a file.",
				ArgsUsage: "<path>",
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) (err error) {
					fpath, err := arg(cmd, 0)
					if err != nil {
						return err
					}
					f, err := m.Open(ctx, fpath)
					if err != nil {
						return err
					}
					defer func() {
						err = multierr.Append(err, f.Close())
					}()
					_, err = io.Copy(os.Stdout, f)
					return err
				}),
			}, {
				Name:      "write",
				Usage:     "Write a message to a file, replacing its content.",
				ArgsUsage: "<path> <message>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "nested",
						Usage: "If set, creates missing parent directories.",
					},
				},
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) error {
					fpath, msg, err := args2(cmd)
					if err != nil {
						return err
					}
					if cmd.Bool("nested") {
						created, err := m.WriteNested(ctx, fpath, msg)
						for _, dir := range created {
							fmt.Printf("[+] Directory %s created\n", dir)
						}
						if err != nil {
							return err
						}
					} else if err := m.WriteFile(ctx, fpath, msg); err != nil {
						return err
					}
					fmt.Printf("[+] File %s written\n", fpath)
					return nil
				}),
			}, {
				Name:      "append",
				Usage:     "Append a message to a file.",
				ArgsUsage: "<path> <message>",
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) error {
					fpath, msg, err := args2(cmd)
					if err != nil {
						return err
					}
					if err := m.AppendFile(ctx, fpath, msg); err != nil {
						return err
					}
					fmt.Printf("[~] Message appended to %s\n", fpath)
					return nil
				}),
			}, {
				Name:      "mv",
				Usage:     "Rename a file or directory.",
				ArgsUsage: "<from> <to>",
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) error {
					from, to, err := args2(cmd)
					if err != nil {
						return err
					}
					if err := m.Rename(ctx, from, to); err != nil {
						return err
					}
					fmt.Printf("[~] %s renamed to %s\n", from, to)
					return nil
				}),
			}, {
				Name:      "rm",
				Usage:     "Delete a file.",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "nested",
						Usage: "If set, also removes the parent directories left empty.",
					},
				},
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) error {
					fpath, err := arg(cmd, 0)
					if err != nil {
						return err
					}
					if cmd.Bool("nested") {
						removed, err := m.DeleteNested(ctx, fpath)
						for _, dir := range removed {
							fmt.Printf("[-] Directory %s removed\n", dir)
						}
						if err != nil {
							return err
						}
					} else if err := m.Delete(ctx, fpath); err != nil {
						return err
					}
					fmt.Printf("[-] File %s deleted\n", fpath)
					return nil
				}),
			}, {
				Name:      "mkdir",
				Usage:     "Create a directory.",
				ArgsUsage: "<dir>",
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) error {
					dir, err := arg(cmd, 0)
					if err != nil {
						return err
					}
					if err := m.Mkdir(ctx, dir); err != nil {
						return err
					}
					fmt.Printf("[+] Directory %s created\n", dir)
					return nil
				}),
			}, {
				Name:      "rmdir",
				Usage:     "Remove an empty directory.",
				ArgsUsage: "<dir>",
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) error {
					dir, err := arg(cmd, 0)
					if err != nil {
						return err
					}
					if err := m.Rmdir(ctx, dir); err != nil {
						return err
					}
					fmt.Printf("[-] Directory %s removed\n", dir)
					return nil
				}),
			}, {
				Name:      "bench",
				Usage:     "Measure write then read throughput on a file, deleted afterwards.",
				ArgsUsage: "[path]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "chunk-size",
						Value: fs.DefaultChunkSize,
						Usage: "The size in bytes of a chunk.",
					},
					&cli.IntFlag{
						Name:  "chunks",
						Value: fs.DefaultChunkCount,
						Usage: "The number of chunks.",
					},
				},
				Action: withMount(func(ctx context.Context, cmd *cli.Command, m *fs.Mount) error {
					fpath := cmd.Args().First()
					if fpath == "" {
						fpath = "/test.txt"
					}
					res, err := m.Benchmark(ctx, fpath, cmd.Int("chunk-size"), cmd.Int("chunks"))
					if err != nil {
						return err
					}
					fmt.Printf("%d bytes written in %s\n", res.BytesWritten, res.WriteDuration)
					fmt.Printf("%d bytes read in %s\n", res.BytesRead, res.ReadDuration)
					return m.Delete(ctx, fpath)
				}),
			}, {
				Name:  "df",
				Usage: "Print the partition usage.",
				Action: withMount(func(ctx context.Context, _ *cli.Command, m *fs.Mount) error {
					used, total, err := m.Usage(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("%s (%s): %d / %d bytes\n", m.Partition.Label, m.Partition.Name, used, total)
					return nil
				}),
			}, {
				Name:  "format",
				Usage: "Wipe the partition.",
				Action: func(ctx context.Context, _ *cli.Command) error {
					flash := ctx.Value(cliFlashKey{}).(fs.Flash)
					p := ctx.Value(cliPartKey{}).(fs.Partition)

					sb, err := fs.Format(ctx, flash, p)
					if err != nil {
						return err
					}
					fmt.Printf("[+] Partition %s formatted at %s\n", sb.Name, sb.FormattedAt)
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withMount mounts the selected partition for the time of the action.
func withMount(action func(context.Context, *cli.Command, *fs.Mount) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) (err error) {
		flash := ctx.Value(cliFlashKey{}).(fs.Flash)
		p := ctx.Value(cliPartKey{}).(fs.Partition)

		m, err := fs.MountPartition(ctx, flash, p, fs.MountOptions{
			FormatIfFailed: global.Conf.Flash.FormatIfFailed,
		})
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, m.Unmount(ctx))
		}()
		return action(ctx, cmd, m)
	}
}

func arg(cmd *cli.Command, i int) (string, error) {
	a := cmd.Args().Get(i)
	if a == "" {
		return "", errors.Errorf("missing argument %d, usage: %s %s", i+1, cmd.Name, cmd.ArgsUsage)
	}
	return a, nil
}

func args2(cmd *cli.Command) (string, string, error) {
	a, err := arg(cmd, 0)
	if err != nil {
		return "", "", err
	}
	b, err := arg(cmd, 1)
	if err != nil {
		return "", "", err
	}
	return a, b, nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"lyrics-translator-go/cache"
	"lyrics-translator-go/config"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

type runner struct {
	conf config.Config
	out  io.Writer
}

func newApp(conf config.Config, out io.Writer) *cli.Command {
	r := &runner{conf: conf, out: out}
	return &cli.Command{
		Name:  "cachectl",
		Usage: "Inspect and maintain the lyrics translation cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "db",
				Usage: "Path to the cache database",
				Value: conf.Cache.DBPath,
			},
			&cli.StringFlag{
				Name:  "backups",
				Usage: "Directory holding cache backups",
				Value: conf.Cache.BackupPath,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show entry counts and sizes per category",
				Action: r.stats,
			},
			{
				Name:      "clear",
				Usage:     "Back up the cache, then clear the given categories (all when none)",
				ArgsUsage: "[category...]",
				Action:    r.clear,
			},
			{
				Name:   "backup",
				Usage:  "Write a snapshot of the cache",
				Action: r.backup,
			},
			{
				Name:    "backups",
				Aliases: []string{"ls"},
				Usage:   "List backups, newest first",
				Action:  r.listBackups,
			},
			{
				Name:      "delete-backup",
				Aliases:   []string{"rm"},
				Usage:     "Delete a backup by file name",
				ArgsUsage: "<file>",
				Action:    r.deleteBackup,
			},
		},
	}
}

func (r *runner) open(cmd *cli.Command) (*cache.Store, error) {
	store, err := cache.Open(cache.Options{
		DBPath:      cmd.String("db"),
		BackupPath:  cmd.String("backups"),
		Compression: r.conf.FeatureFlags.CacheCompression,
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return store, nil
}

func (r *runner) stats(_ context.Context, cmd *cli.Command) error {
	store, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	byCategory, err := store.Stats()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tENTRIES\tSIZE")
	var total int64
	for _, c := range cache.Categories() {
		st := byCategory[c]
		total += st.SizeBytes
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c, st.Count, humanize.Bytes(uint64(st.SizeBytes)))
	}
	fmt.Fprintf(tw, "total\t\t%s\n", humanize.Bytes(uint64(total)))
	return tw.Flush()
}

func (r *runner) clear(_ context.Context, cmd *cli.Command) error {
	var categories []cache.Category
	for _, name := range cmd.Args().Slice() {
		c, err := cache.ParseCategory(name)
		if err != nil {
			return err
		}
		categories = append(categories, c)
	}

	store, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	backupPath, err := store.BackupAndClear(categories...)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "cleared, backup at %s\n", backupPath)
	return nil
}

func (r *runner) backup(_ context.Context, cmd *cli.Command) error {
	store, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	backupPath, err := store.Backup()
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, backupPath)
	return nil
}

func (r *runner) listBackups(_ context.Context, cmd *cli.Command) error {
	store, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	backups, err := store.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Fprintln(r.out, "no backups")
		return nil
	}

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSIZE\tCREATED")
	for _, b := range backups {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", b.FileName, b.SizeHuman, b.CreatedAt)
	}
	return tw.Flush()
}

func (r *runner) deleteBackup(_ context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("backup file name is required")
	}

	store, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteBackup(name); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "deleted %s\n", name)
	return nil
}

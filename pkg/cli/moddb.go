package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/modhost/pkg/moddb"
	"github.com/platinummonkey/modhost/pkg/plugins"
)

var errNoModDB = errors.New("no mod database configured (set --db or MODHOST_MODDB_PATH)")

func newModDBCommand(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "moddb",
		Short: "Manage the mod compatibility database",
	}
	cmd.PersistentFlags().StringVar(&path, "db", "", "database path (default from config)")

	open := func(ctx context.Context) (*moddb.Store, error) {
		if path == "" {
			path = a.cfg.ModDB.Path
		}
		if path == "" {
			return nil, errNoModDB
		}
		return moddb.Open(ctx, path, a.logger)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "import FILE",
			Short: "Import records from a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()

				n, err := store.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Imported %d record(s).\n", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List every record",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				table := uitable.New()
				table.MaxColWidth = maxColWidth
				table.AddRow(headerColor("ID"), headerColor("STATUS"), headerColor("UP TO"), headerColor("REASON"))
				for _, record := range records {
					upper := record.UpperVersion
					if upper == "" {
						upper = "all"
					}
					table.AddRow(record.ID, string(record.Status), upper, record.StatusReason)
				}
				fmt.Fprintln(a.out, table)
				return nil
			},
		},
		newModDBSetCommand(a, open),
		&cobra.Command{
			Use:   "delete ID",
			Short: "Delete a record",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				store, err := open(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()
				return store.Delete(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func newModDBSetCommand(a *app, open func(context.Context) (*moddb.Store, error)) *cobra.Command {
	record := &plugins.DataRecord{}
	var status string
	cmd := &cobra.Command{
		Use:   "set ID",
		Short: "Create or replace a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record.ID = args[0]
			record.Status = plugins.DataRecordStatus(status)

			store, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Upsert(cmd.Context(), record); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s (%s).\n", record.ID, record.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", string(plugins.RecordOK), "ok, assume_compatible, assume_broken or obsolete")
	cmd.Flags().StringVar(&record.StatusReason, "reason", "", "reason shown to users")
	cmd.Flags().StringVar(&record.PageURL, "url", "", "mod page URL")
	cmd.Flags().StringVar(&record.UpperVersion, "upper-version", "", "last version the status applies to")
	return cmd
}

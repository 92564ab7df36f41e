package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anirudhraja/tlv8/featureflags"
	"github.com/anirudhraja/tlv8/internal/render"
)

func newSchemaCmd(s *state) *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect loaded schemas",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded record and enum types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records := s.codec.ListRecords()
			enums := s.codec.ListEnums()
			if s.cfg.Output == render.FormatTable {
				table := render.Table{Header: render.Row{"KIND", "NAME"}}
				for _, name := range records {
					table.Rows = append(table.Rows, render.Row{"record", name})
				}
				for _, name := range enums {
					table.Rows = append(table.Rows, render.Row{"enum", name})
				}
				return s.print(cmd, table)
			}
			return s.print(cmd, map[string]interface{}{
				"records": stringsToList(records),
				"enums":   stringsToList(enums),
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <record>",
		Short: "Show the fields of a record type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := s.codec.Registry().GetRecord(args[0])
			if err != nil {
				return err
			}
			if s.cfg.Output == render.FormatTable {
				table := render.Table{Header: render.Row{"TAG", "NAME", "TYPE", "REQUIRED"}}
				for _, f := range rec.Fields {
					table.Rows = append(table.Rows, render.Row{
						fmt.Sprint(f.Tag), f.Name, f.Type.String(), fmt.Sprint(f.Required),
					})
				}
				return s.print(cmd, table)
			}

			fields := make([]interface{}, 0, len(rec.Fields))
			for _, f := range rec.Fields {
				fields = append(fields, map[string]interface{}{
					"tag":      f.Tag,
					"name":     f.Name,
					"type":     f.Type.String(),
					"required": f.Required,
				})
			}
			return s.print(cmd, map[string]interface{}{"name": rec.Name, "fields": fields})
		},
	}

	schemaCmd.AddCommand(listCmd, showCmd)
	return schemaCmd
}

func newFeaturesCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "features <ff>",
		Short: "Describe the feature flags of a Bonjour TXT record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := featureflags.ParseTXTValue(args[0])
			if err != nil {
				return err
			}
			desc, err := featureflags.Lookup(flags)
			if err != nil {
				return err
			}
			if s.cfg.Output == render.FormatTable {
				fmt.Fprintln(cmd.OutOrStdout(), desc)
				return nil
			}
			return s.print(cmd, map[string]interface{}{
				"flags":       flags,
				"pairing":     featureflags.SupportsPairing(flags),
				"description": desc,
			})
		},
	}
}

func stringsToList(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

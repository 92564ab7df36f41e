package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anirudhraja/tlv8"
	"github.com/anirudhraja/tlv8/internal/render"
	"github.com/anirudhraja/tlv8/registry"
	"github.com/anirudhraja/tlv8/schema"
)

func newDecodeCmd(s *state) *cobra.Command {
	var recordType string

	cmd := &cobra.Command{
		Use:   "decode --type <record> <hex|->",
		Short: "Decode TLV8 bytes into a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readHexArg(cmd, args[0])
			if err != nil {
				return err
			}
			record, err := s.codec.Parse(data, recordType)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", recordType, err)
			}
			return s.print(cmd, record)
		},
	}
	cmd.Flags().StringVarP(&recordType, "type", "t", "", "record type name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEncodeCmd(s *state) *cobra.Command {
	var recordType string

	cmd := &cobra.Command{
		Use:   "encode --type <record> <json|->",
		Short: "Encode a JSON record as TLV8 hex",
		Long: `Encode a JSON object as the given record type. Byte fields are given as
hex strings, enums by member name or number.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readArg(cmd, args[0])
			if err != nil {
				return err
			}

			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			var record map[string]interface{}
			if err := dec.Decode(&record); err != nil {
				return fmt.Errorf("invalid JSON record: %w", err)
			}

			reg := s.codec.Registry()
			rec, err := reg.GetRecord(recordType)
			if err != nil {
				return err
			}
			if err := hexToBytes(record, rec, reg); err != nil {
				return err
			}

			data, err := s.codec.Marshal(record, rec.Name)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", rec.Name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&recordType, "type", "t", "", "record type name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEntriesCmd(s *state) *cobra.Command {
	return &cobra.Command{
		Use:   "entries <hex|->",
		Short: "List the TLV8 entries of a buffer without a schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readHexArg(cmd, args[0])
			if err != nil {
				return err
			}
			entries, err := tlv8.Entries(data)
			if err != nil {
				return err
			}

			if s.cfg.Output == render.FormatTable {
				table := render.Table{Header: render.Row{"OFFSET", "TAG", "LENGTH", "CHUNKS", "VALUE"}}
				for _, e := range entries {
					table.Rows = append(table.Rows, render.Row{
						fmt.Sprint(e.Offset),
						fmt.Sprint(e.Tag),
						fmt.Sprint(len(e.Value)),
						fmt.Sprint(e.Chunks()),
						hex.EncodeToString(e.Value),
					})
				}
				return s.print(cmd, table)
			}

			list := make([]interface{}, 0, len(entries))
			for _, e := range entries {
				list = append(list, map[string]interface{}{
					"offset": e.Offset,
					"tag":    e.Tag,
					"length": len(e.Value),
					"chunks": e.Chunks(),
					"value":  e.Value,
				})
			}
			return s.print(cmd, list)
		},
	}
}

// readArg returns arg, or stdin when arg is "-".
func readArg(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	return data, nil
}

// readHexArg decodes a hex argument. Whitespace, colons and a 0x prefix are
// ignored.
func readHexArg(cmd *cobra.Command, arg string) ([]byte, error) {
	raw, err := readArg(cmd, arg)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(raw))
	text = strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X")
	text = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, text)

	data, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return data, nil
}

// hexToBytes replaces the hex strings of byte fields by their bytes, walking
// nested records and sequences.
func hexToBytes(data map[string]interface{}, rec *schema.Record, reg *registry.Registry) error {
	for _, f := range rec.Fields {
		value, ok := data[f.Name]
		if !ok || value == nil {
			continue
		}

		switch {
		case f.Type.Kind == schema.KindBytes:
			s, ok := value.(string)
			if !ok {
				continue
			}
			b, err := hex.DecodeString(s)
			if err != nil {
				return fmt.Errorf("field %s: invalid hex: %w", f.Name, err)
			}
			data[f.Name] = b
		case f.Type.Kind == schema.KindSequence:
			nested, err := reg.GetRecord(f.Type.Record)
			if err != nil {
				return err
			}
			items, _ := value.([]interface{})
			for i, item := range items {
				m, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				if err := hexToBytes(m, nested, reg); err != nil {
					return fmt.Errorf("%s[%d]: %w", f.Name, i, err)
				}
			}
		case f.Type.Kind == schema.KindRecord || (f.Type.Kind == "" && f.Type.Record != ""):
			nested, err := reg.GetRecord(f.Type.Record)
			if err != nil {
				return err
			}
			if m, ok := value.(map[string]interface{}); ok {
				if err := hexToBytes(m, nested, reg); err != nil {
					return fmt.Errorf("%s: %w", f.Name, err)
				}
			}
		}
	}
	return nil
}

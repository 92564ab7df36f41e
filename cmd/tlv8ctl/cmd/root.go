package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/anirudhraja/tlv8"
	"github.com/anirudhraja/tlv8/internal/config"
	"github.com/anirudhraja/tlv8/internal/logging"
	"github.com/anirudhraja/tlv8/internal/render"
	"github.com/anirudhraja/tlv8/wire"
)

// state is shared by the commands of one root command.
type state struct {
	// Global flags
	cfgFile      string
	schemaPaths  []string
	outputFormat string
	logLevel     string
	allowUnknown bool

	// Set during PersistentPreRun
	cfg       config.Config
	logger    zerolog.Logger
	codec     *tlv8.Codec
	formatter render.Formatter
}

// RootCmd returns a fresh root command with every subcommand attached.
func RootCmd() *cobra.Command {
	s := &state{}

	root := &cobra.Command{
		Use:   "tlv8ctl",
		Short: "Encode, decode and inspect TLV8 records",
		Long: `tlv8ctl converts between TLV8 bytes and structured records using
schemas loaded from .proto, YAML or compiled descriptor set files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&s.cfgFile, "config", "", "TOML config file")
	flags.StringArrayVar(&s.schemaPaths, "schema", nil, "schema file or directory (repeatable)")
	flags.StringVarP(&s.outputFormat, "output", "o", "", "output format: json, yaml, cbor, table (default \"json\")")
	flags.StringVar(&s.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, off")
	flags.BoolVar(&s.allowUnknown, "allow-unknown-enum", false, "decode enum numbers that have no member")

	root.AddCommand(
		newDecodeCmd(s),
		newEncodeCmd(s),
		newEntriesCmd(s),
		newSchemaCmd(s),
		newFeaturesCmd(s),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (s *state) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if s.cfgFile != "" {
		loaded, err := config.Load(s.cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	// Override config with flags
	flags := cmd.Flags()
	if flags.Changed("schema") {
		cfg.SchemaPaths = append(cfg.SchemaPaths, s.schemaPaths...)
	}
	if flags.Changed("output") {
		cfg.Output = strings.ToLower(strings.TrimSpace(s.outputFormat))
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = s.logLevel
	}
	if flags.Changed("allow-unknown-enum") {
		cfg.AllowUnknownEnum = s.allowUnknown
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.cfg = cfg

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	s.logger = logging.New("tlv8ctl", logging.LevelFromEnv(level), cmd.ErrOrStderr())

	s.formatter, err = render.NewFormatter(cfg.Output)
	if err != nil {
		return err
	}

	s.codec = tlv8.New(
		tlv8.WithConfig(wire.Config{AllowUnknownEnumNumberDecode: cfg.AllowUnknownEnum}),
		tlv8.WithLogger(s.logger),
	)
	for _, path := range cfg.SchemaPaths {
		if err := s.codec.LoadSchema(path); err != nil {
			return fmt.Errorf("failed to load schema %s: %w", path, err)
		}
	}
	s.logger.Debug().
		Int("records", len(s.codec.ListRecords())).
		Int("enums", len(s.codec.ListEnums())).
		Msg("schemas loaded")
	return nil
}

func (s *state) print(cmd *cobra.Command, data any) error {
	out, err := s.formatter.Format(data)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

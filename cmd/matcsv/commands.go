package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/twinfer/matcsv/pkg/convert"
	"github.com/twinfer/matcsv/pkg/label"
	"github.com/twinfer/matcsv/pkg/merge"
	"github.com/twinfer/matcsv/pkg/sink"
)

func newConvertCmd() *cobra.Command {
	var (
		outDir    string
		ext       string
		delimiter string
		prefixes  []string
		workers   int
		sqlite    string
	)
	cmd := &cobra.Command{
		Use:   "convert [SOURCE...]",
		Short: "Write one table per MAT-file variable",
		Long: `Converts every variable of a MATLAB Level 5 MAT-file into a CSV file
named after the variable. Variables that cannot be laid out as a table are
written as a YAML text dump under the same name. Missing source files are
skipped with a warning.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			sources := args
			if len(sources) == 0 && cfg.Source != "" {
				sources = []string{cfg.Source}
			}
			if flags.Changed("out") {
				cfg.OutDir = outDir
			}
			if flags.Changed("ext") {
				cfg.Extension = ext
			}
			if flags.Changed("delimiter") {
				cfg.Delimiter = delimiter
			}
			if flags.Changed("reserved-prefix") {
				cfg.ReservedPrefixes = prefixes
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if flags.Changed("sqlite") {
				cfg.SQLitePath = sqlite
			}
			if len(sources) == 0 {
				return fmt.Errorf("no source MAT-file given")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			delim, _ := cfg.DelimiterRune()

			logger, err := newLogger(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}
			sinkOpts := []sink.Option{
				sink.WithExtension(cfg.Extension),
				sink.WithDelimiter(delim),
				sink.WithLogger(logger),
			}

			var s sink.Sink
			if cfg.SQLitePath != "" {
				db, err := sink.OpenSQLite(cfg.SQLitePath, sinkOpts...)
				if err != nil {
					return err
				}
				s = db
			} else {
				dir, err := sink.NewCSVDir(cfg.OutDir, sinkOpts...)
				if err != nil {
					return err
				}
				s = dir
			}
			defer s.Close()

			conv := convert.New(
				convert.WithLogger(logger),
				convert.WithReservedPrefixes(cfg.ReservedPrefixes...),
				convert.WithWorkers(cfg.Workers),
			)
			out := cmd.OutOrStdout()
			var converted, failed int
			for _, src := range sources {
				report, err := conv.Convert(cmd.Context(), src, s)
				var missing *convert.MissingInputError
				if errors.As(err, &missing) {
					logger.WarnContext(cmd.Context(), "Skipping missing input", "source", src)
					fmt.Fprintf(out, "Skipping %s: not found\n", src)
					continue
				}
				if err != nil {
					return err
				}
				converted++
				failed += report.Failed
				for _, o := range report.Outcomes {
					switch o.Status {
					case convert.Tabularized:
						fmt.Fprintf(out, "Saved %s\n", o.Name)
					case convert.Fallback:
						fmt.Fprintf(out, "Saved %s as text: %v\n", o.Name, o.Err)
					case convert.Failed:
						fmt.Fprintf(out, "Could not save %s: %v\n", o.Name, o.Err)
					}
				}
			}
			if converted == 0 {
				return fmt.Errorf("none of %d input files exist", len(sources))
			}
			if failed > 0 {
				return fmt.Errorf("%d records could not be saved", failed)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&outDir, "out", "o", "data", "Output directory")
	f.StringVar(&ext, "ext", "csv", "Output file extension")
	f.StringVar(&delimiter, "delimiter", ",", "Field delimiter")
	f.StringSliceVar(&prefixes, "reserved-prefix", []string{"__"}, "Skip variables whose name starts with this prefix")
	f.IntVar(&workers, "workers", 1, "Variables converted concurrently")
	f.StringVar(&sqlite, "sqlite", "", "Write tables into this SQLite database instead of CSV files")
	return cmd
}

func newMergeCmd() *cobra.Command {
	var (
		dir    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "merge [FILE...]",
		Short: "Join converted tables side by side",
		Long: `Joins CSV files from a directory by row position into one table. Each
column is prefixed with its file name, shorter tables are padded with empty
cells, and missing files are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("dir") {
				dir = cfg.OutDir
			}
			if cmd.Flags().Changed("output") {
				cfg.Merge.Output = output
			}
			files := cfg.Merge.Files
			if len(args) > 0 {
				files = args
			}
			delim, err := cfg.DelimiterRune()
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}

			res, err := merge.Files(cmd.Context(), dir, files, cfg.Merge.Output,
				merge.WithLogger(logger), merge.WithDelimiter(delim))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Combined CSV written to %s (%d rows, %d columns)\n",
				res.Output, res.Rows, res.Columns)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "data", "Directory holding the input tables")
	cmd.Flags().StringVarP(&output, "output", "o", filepath.Join("data", "data.csv"), "Merged output file")
	return cmd
}

func newLabelCmd() *cobra.Command {
	var (
		target  string
		columns []string
		expr    string
	)
	cmd := &cobra.Command{
		Use:   "label [PATH]",
		Short: "Add a derived series identifier column",
		Long: `Adds a column to a CSV file in place. By default the value is the
underscore-joined stimulus, restimulus, repetition and rerepetition columns;
--expr computes it with a CEL expression over the row instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if len(args) == 1 {
				cfg.Label.Path = args[0]
			}
			if flags.Changed("column") {
				cfg.Label.Target = target
			}
			if flags.Changed("source-columns") {
				cfg.Label.Columns = columns
			}
			if flags.Changed("expr") {
				cfg.Label.Expression = expr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			delim, _ := cfg.DelimiterRune()
			logger, err := newLogger(cmd.ErrOrStderr(), cfg)
			if err != nil {
				return err
			}

			opts := []label.Option{
				label.WithTarget(cfg.Label.Target),
				label.WithColumns(cfg.Label.Columns...),
				label.WithSeparator(cfg.Label.Separator),
				label.WithDelimiter(delim),
				label.WithLogger(logger),
			}
			if cfg.Label.Expression != "" {
				opts = append(opts, label.WithExpression(cfg.Label.Expression))
			}
			if err := label.Apply(cmd.Context(), cfg.Label.Path, opts...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s\n", cfg.Label.Target, cfg.Label.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "column", label.DefaultTarget, "Name of the derived column")
	cmd.Flags().StringSliceVar(&columns, "source-columns", label.DefaultColumns, "Columns joined into the label")
	cmd.Flags().StringVar(&expr, "expr", "", "CEL expression computing the label")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jward/siardlite"
)

var (
	flagVerbose   int
	flagQuiet     bool
	flagFullUnzip bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// version is overridden at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "siardlite <siard-input> [<sql-output> [<schema-filter-regex>]]",
	Short:   "Translate a SIARD archive into a SQLite SQL script",
	Version: version,
	Long: `siardlite reads a SIARD 2.1/2.2 archive (a .siard/.zip file or an
exploded directory) and writes a self-contained SQL script that recreates
the schemas, tables, primary keys, unique indexes and row data in SQLite.

With only a SIARD input, prints a schema summary instead of translating.
The optional third argument is a case-insensitive regex matched against
schema names; non-matching schemas are skipped.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	Args:          cobra.MaximumNArgs(3),
	RunE:          run,
}

func init() {
	rootCmd.Flags().CountVarP(&flagVerbose, "verbose", "v", "emit comment banners around statements; repeat for debug logging")
	rootCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress warnings")
	rootCmd.Flags().BoolVar(&flagFullUnzip, "full-unzip", false, "extract the whole archive up front instead of file by file")
}

func run(cmd *cobra.Command, args []string) error {
	configureLogging()

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, cmd.UsageString())
		return fmt.Errorf("missing <siard-input>")
	}
	input := args[0]
	if len(args) == 1 {
		return printSummary(input)
	}
	return translate(input, args[1], argOr(args, 2))
}

func argOr(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func translate(input, output, filterExpr string) error {
	filter, err := siardlite.CompileSchemaFilter(filterExpr)
	if err != nil {
		return err
	}

	opts := []siardlite.Option{
		siardlite.WithVerbose(flagVerbose),
		siardlite.WithSchemaFilter(filter),
		siardlite.WithFullUnzip(flagFullUnzip),
	}
	tr, err := siardlite.New(input, opts...)
	if err != nil {
		return err
	}

	out, err := os.Create(output)
	if err != nil {
		tr.Close()
		return fmt.Errorf("create output: %w", err)
	}

	start := time.Now()
	cw := &countingWriter{w: out}
	runErr := tr.Run(cw)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", err)
	}
	if err := tr.Close(); err != nil {
		log.WithError(err).Warn("workspace teardown failed")
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(os.Stderr, "Translated %s in %s (%s written, %d warnings)\n",
		input,
		time.Since(start).Round(time.Millisecond),
		humanize.Bytes(uint64(cw.n)),
		tr.Warnings(),
	)
	fmt.Fprintf(os.Stderr, "Output: %s\n", output)
	return nil
}

// printSummary implements the one-argument mode: schema structure to
// stdout, no translation.
func printSummary(input string) error {
	s, err := siardlite.Summarize(input, siardlite.WithFullUnzip(flagFullUnzip))
	if err != nil {
		return err
	}
	fmt.Printf("dbname: %s\n", s.DBName)
	fmt.Printf("siard version: %s\n", s.Version)
	fmt.Printf("schemas: %d\n", len(s.Schemas))

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCHEMA\tTABLE\tCOLUMNS\tROWS")
	for _, sc := range s.Schemas {
		for _, tb := range sc.Tables {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", sc.Name, tb.Name, tb.Columns, tb.Rows)
		}
	}
	return tw.Flush()
}

func configureLogging() {
	log.SetOutput(os.Stderr)
	switch {
	case flagQuiet:
		log.SetLevel(log.ErrorLevel)
	case flagVerbose > 1:
		log.SetLevel(log.DebugLevel)
	}
}

// countingWriter tracks bytes written for the completion summary.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

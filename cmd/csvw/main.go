// Package main provides the csvw CLI: it validates CSVW metadata
// documents, emits the annotated data model for tabular inputs, and
// generates JSON Schema for emitted rows.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"go.jacobcolvin.com/csvw/log"
	"go.jacobcolvin.com/csvw/metadata"
	"go.jacobcolvin.com/csvw/profile"
	"go.jacobcolvin.com/csvw/schemagen"
	"go.jacobcolvin.com/csvw/tabular"
	"go.jacobcolvin.com/csvw/version"
)

func main() {
	logCfg := log.NewConfig()
	profCfg := profile.NewConfig()

	var (
		output string
		strict bool
		rows   bool
		title  string
		id     string
		prof   *profile.Profiler
	)

	rootCmd := &cobra.Command{
		Use:           "csvw",
		Short:         "Process CSV on the Web metadata and tabular data",
		Version:       version.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return err
			}

			slog.SetDefault(slog.New(handler))

			prof = profCfg.NewProfiler()

			return prof.Start()
		},
	}

	logCfg.RegisterFlags(rootCmd.PersistentFlags())
	profCfg.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")

	completionErr := logCfg.RegisterCompletions(rootCmd)
	if completionErr != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", completionErr)
	}

	validateCmd := &cobra.Command{
		Use:   "validate <metadata.(json|yaml)>",
		Short: "Validate a CSVW metadata document",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0], strict)
		},
	}
	validateCmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	annotateCmd := &cobra.Command{
		Use:   "annotate <metadata.(json|yaml)>",
		Short: "Emit the annotated table descriptor as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runAnnotate(args[0], output, rows)
		},
	}
	annotateCmd.Flags().BoolVar(&rows, "rows", false, "include interpreted rows from each table's CSV")

	schemaCmd := &cobra.Command{
		Use:   "schema <metadata.(json|yaml)>",
		Short: "Generate JSON Schema for a table's emitted rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSchema(args[0], output, title, id)
		},
	}
	schemaCmd.Flags().StringVar(&title, "title", "", "schema title field")
	schemaCmd.Flags().StringVar(&id, "id", "", "schema $id field")

	rootCmd.AddCommand(validateCmd, annotateCmd, schemaCmd)

	err := rootCmd.Execute()

	if prof != nil {
		stopErr := prof.Stop()
		if stopErr != nil {
			fmt.Fprintf(os.Stderr, "%v\n", stopErr)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// readMetadata loads, decodes, and parses a metadata document. YAML input
// is accepted as a JSON superset for hand-authored metadata.
func readMetadata(path string) (*metadata.Graph, *metadata.Diagnostics, error) {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // Metadata path comes from the CLI invocation.
	}

	if err != nil {
		return nil, nil, fmt.Errorf("reading metadata: %w", err)
	}

	diags := metadata.NewDiagnostics(slog.Default())

	opts := []metadata.Option{
		metadata.WithDiagnostics(diags),
		metadata.WithLoader(&metadata.FileHTTPLoader{}),
	}

	if path != "-" {
		abs, absErr := filepath.Abs(path)
		if absErr == nil {
			opts = append(opts, metadata.WithBase("file://"+abs))
		}
	}

	var raw any

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.Unmarshal(data, &raw)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding yaml metadata: %w", err)
		}
	} else {
		err = json.Unmarshal(data, &raw)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding json metadata: %w", err)
		}
	}

	g, err := metadata.Parse(raw, opts...)
	if err != nil {
		return nil, nil, err
	}

	return g.Normalize(), diags, nil
}

func runValidate(path string, strict bool) error {
	g, diags, err := readMetadata(path)
	if err != nil {
		return err
	}

	err = g.Check()
	if err != nil {
		return err
	}

	if strict && !diags.Empty() {
		return fmt.Errorf("%d warnings in strict mode:\n%s",
			len(diags.Warnings()), strings.Join(diags.Warnings(), "\n"))
	}

	slog.Info("metadata is valid", slog.Int("warnings", len(diags.Warnings())))

	return nil
}

func runAnnotate(path, output string, includeRows bool) error {
	g, _, err := readMetadata(path)
	if err != nil {
		return err
	}

	doc := map[string]any{"metadata": g.ATD()}

	if includeRows {
		tables, rowsErr := annotateRows(g)
		if rowsErr != nil {
			return rowsErr
		}

		doc["tables"] = tables
	}

	return writeJSON(output, doc)
}

// annotateRows streams every table's CSV through the row iterator,
// collecting interpreted rows and comment annotations.
func annotateRows(g *metadata.Graph) ([]map[string]any, error) {
	loader := &metadata.FileHTTPLoader{}

	var tables []map[string]any

	for _, table := range g.Tables() {
		if g.SuppressOutput(table) {
			continue
		}

		url := g.TableURL(table)

		res, err := loader.Load(context.Background(), url)
		if err != nil {
			return nil, err
		}

		entry := map[string]any{"url": url}

		var (
			rowDocs  []map[string]any
			comments []string
		)

		columns := g.ResolveColumns(table)

		err = tabular.EachRow(strings.NewReader(string(res.Body)), g, table, tabular.SinkFuncs{
			OnRow: func(r *tabular.Row) error {
				rowDocs = append(rowDocs, rowDocument(r, columns))

				return nil
			},
			OnComment: func(text string) error {
				comments = append(comments, text)

				return nil
			},
		})
		if err != nil {
			return nil, err
		}

		entry["rows"] = rowDocs

		if len(comments) > 0 {
			entry["rdfs:comment"] = comments
		}

		tables = append(tables, entry)
	}

	return tables, nil
}

// rowDocument renders one row as a JSON-shaped map.
func rowDocument(r *tabular.Row, columns []*metadata.ResolvedColumn) map[string]any {
	cells := map[string]any{}

	for i, cell := range r.Cells {
		if i < len(columns) && columns[i].SuppressOut {
			continue
		}

		cells[cell.Column.Name] = cellValue(cell)
	}

	doc := map[string]any{
		"row":       r.Number,
		"sourceRow": r.SourceNumber,
		"cells":     cells,
	}

	return doc
}

func cellValue(c *tabular.Cell) any {
	render := func(v any) any {
		if lit, ok := v.(tabular.Literal); ok {
			return lit.Value
		}

		return v
	}

	if list, ok := c.Value.([]any); ok {
		out := make([]any, 0, len(list))
		for _, v := range list {
			out = append(out, render(v))
		}

		return out
	}

	return render(c.Value)
}

func runSchema(path, output, title, id string) error {
	g, _, err := readMetadata(path)
	if err != nil {
		return err
	}

	var opts []schemagen.Option

	if title != "" {
		opts = append(opts, schemagen.WithTitle(title))
	}

	if id != "" {
		opts = append(opts, schemagen.WithID(id))
	}

	schema, err := schemagen.NewGenerator(opts...).Generate(g)
	if err != nil {
		return err
	}

	slog.Debug("generated schema", slog.String("shape", schemagen.Describe(schema)))

	return writeJSON(output, schema)
}

func writeJSON(output string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	out = append(out, '\n')

	if output == "" || output == "-" {
		_, err = os.Stdout.Write(out)
		if err != nil {
			return fmt.Errorf("writing output: %w", err)
		}

		return nil
	}

	err = os.WriteFile(output, out, 0o644) //nolint:gosec // CLI output file.
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	return nil
}

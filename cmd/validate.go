package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/centrally/ingest-cli/internal/ingest"
	"github.com/centrally/ingest-cli/internal/schema"
)

var (
	validateFile       string
	validateSchema     string
	validateSchemaFile string
	validateSchemaDir  string
	validateMode       string
	validateEncoding   string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a dataset against a declared schema",
	Long:  "Reads a CSV, coerces each declared column to its type, then checks required, range, allowed-value, and uniqueness constraints. Undeclared columns pass through untouched.",
	RunE: func(_ *cobra.Command, _ []string) error {
		reg := schema.DefaultRegistry()

		if validateSchemaDir != "" {
			if err := reg.LoadDir(validateSchemaDir); err != nil {
				return eris.Wrap(err, "validate")
			}
		}
		if validateSchemaFile != "" {
			s, err := schema.LoadFile(validateSchemaFile)
			if err != nil {
				return eris.Wrap(err, "validate")
			}
			if err := reg.Register(s); err != nil {
				return eris.Wrap(err, "validate")
			}
			if validateSchema == "" {
				validateSchema = s.Name
			}
		}
		if validateSchema == "" {
			return eris.Errorf("a schema name is required (--schema, one of: %s)", strings.Join(reg.Names(), ", "))
		}

		mode := schema.CollectAll
		switch validateMode {
		case "", "collect":
			// default
		case "failfast":
			mode = schema.FailFast
		default:
			return eris.Errorf("validate: unknown mode %q, want collect or failfast", validateMode)
		}

		ds, err := ingest.ReadCSVFile(validateFile, ingest.CSVOptions{Encoding: validateEncoding})
		if err != nil {
			return eris.Wrap(err, "validate")
		}

		validator := schema.NewValidator(reg)
		coerced, err := validator.Validate(ds, validateSchema, mode)
		if err != nil {
			var verr *schema.ValidationError
			if errors.As(err, &verr) {
				printViolations(verr)
			}
			return eris.Wrap(err, "validate")
		}

		zap.L().Info("dataset valid",
			zap.String("schema", validateSchema),
			zap.Int("rows", len(coerced.Records)),
		)
		fmt.Printf("OK: %d rows conform to %s\n", len(coerced.Records), validateSchema)
		return nil
	},
}

// printViolations writes one line per violation to stderr.
func printViolations(verr *schema.ValidationError) {
	fmt.Fprintf(os.Stderr, "%d violation(s) against schema %s:\n", len(verr.Violations), verr.Schema)
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\tCOLUMN\tKIND\tDETAIL")
	for _, v := range verr.Violations {
		row := fmt.Sprintf("%d", v.Row)
		if v.Row < 0 {
			row = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row, v.Column, v.Kind, v.Detail)
	}
	_ = w.Flush()
}

func init() {
	validateCmd.Flags().StringVar(&validateFile, "file", "", "path of the CSV to validate (required)")
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "schema name (built-in or loaded from files)")
	validateCmd.Flags().StringVar(&validateSchemaFile, "schema-file", "", "YAML schema file to register before validating")
	validateCmd.Flags().StringVar(&validateSchemaDir, "schema-dir", "", "directory of YAML schema files to register")
	validateCmd.Flags().StringVar(&validateMode, "mode", "collect", "violation handling: collect or failfast")
	validateCmd.Flags().StringVar(&validateEncoding, "encoding", "", "charset of the file (default: UTF-8 with Latin-1 fallback)")
	_ = validateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(validateCmd)
}

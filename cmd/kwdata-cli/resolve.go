package main

import (
	"encoding/json"
	"fmt"

	"github.com/paveg/kwdata"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
	formatYAML = "yaml"
)

func newResolveCmd(root *rootOptions) *cobra.Command {
	var (
		named    []string
		format   string
		validate bool
		defaults bool
	)

	cmd := &cobra.Command{
		Use:   "resolve KEYWORD [ARG...]",
		Short: "Print the data a keyword call resolves to",
		Long: `Resolve binds the positional arguments to the keyword's mandatory
parameters and --arg pairs by name, then prints the resulting rows.

Reserved arguments DATA_FILE and ROWS load and select data; arguments
starting with the setting prefix ("-" by default) override settings.`,
		Example: `  kwdata-cli resolve -m keywords/ login alice secret
  kwdata-cli resolve -m keywords/ login --arg DATA_FILE=users.csv --arg "ROWS=ev: AGE > 30"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := root.framework(cmd)
			if err != nil {
				return err
			}
			kwargs, err := parseAssignments(named)
			if err != nil {
				return err
			}
			positional := make([]any, 0, len(args)-1)
			for _, arg := range args[1:] {
				positional = append(positional, decodeValue(arg))
			}

			name := args[0]
			data, err := f.GetData(name, positional, kwargs)
			if err != nil {
				return err
			}
			if defaults {
				if data, err = f.ApplyDefaults(data, name); err != nil {
					return err
				}
			}
			if validate {
				if err := f.ValidateData(data, name); err != nil {
					return err
				}
			}
			if data == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "call carries no data")
				return nil
			}
			return render(cmd, f, data, format)
		},
	}

	cmd.Flags().StringArrayVarP(&named, "arg", "a", nil, "named argument KEY=VALUE (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "o", formatCSV, "output format: csv, json or yaml")
	cmd.Flags().BoolVar(&validate, "validate", false, "fail when a mandatory field is missing")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "add missing optional parameters with their defaults")
	return cmd
}

func render(cmd *cobra.Command, f *kwdata.Framework, data *kwdata.Dataset, format string) error {
	out := cmd.OutOrStdout()
	switch format {
	case formatCSV:
		return f.WriteCSV(out, data)
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(data.Records())
	case formatYAML:
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(data.Records())
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

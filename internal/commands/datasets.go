package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func newDatasetsCmd(root *rootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List datasets visible to the configured user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "" && output != formatText && output != formatJSON {
				return fmt.Errorf("unsupported output %q (want text or json)", output)
			}

			env, err := root.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			list, err := env.Client.ListDatasets(cmd.Context())
			if err != nil {
				return err
			}
			if list.Identity != "" {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "signed in as %s\n", list.Identity)
			}

			out := cmd.OutOrStdout()
			if output == formatJSON {
				names := list.Datasets
				if names == nil {
					names = []string{}
				}
				return writeJSON(out, names)
			}
			for _, name := range list.Datasets {
				if _, err := fmt.Fprintln(out, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", formatText, "Output format (text, json)")
	return cmd
}

type schemaOutput struct {
	Dataset string        `json:"dataset"`
	Fields  []schemaField `json:"fields"`
}

type schemaField struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

func newSchemaCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <dataset>",
		Short: "Print a dataset's schema as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := root.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			schema, err := env.Client.FetchSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := schemaOutput{Dataset: schema.Dataset, Fields: make([]schemaField, 0, len(schema.Fields))}
			for _, f := range schema.Fields {
				out.Fields = append(out.Fields, schemaField{Name: f.Name, DataType: f.DataType, Nullable: f.Nullable})
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the plume version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "plume %s (%s)\n", Version, runtime.Version())
			return err
		},
	}
}

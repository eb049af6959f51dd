package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/bindhub/bindhub/internal/service"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "Manage connector type config schemas.",
}

var (
	schemaTypeName    string
	schemaVersion     string
	schemaBindingFile string
	schemaNodeFile    string
	schemaAttachOnPut bool
)

var schemasPutCmd = &cobra.Command{
	Use:   "put",
	Short: "Store a new schema version for a connector type.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if schemaTypeName == "" {
			return errors.New("--type is required")
		}
		if schemaVersion == "" {
			return errors.New("--version is required")
		}

		bindingSchema, err := readSchemaFile(schemaBindingFile)
		if err != nil {
			return err
		}
		nodeSchema, err := readSchemaFile(schemaNodeFile)
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ct, err := app.st.GetConnectorTypeByName(cmd.Context(), schemaTypeName)
		if err != nil {
			return err
		}

		cs, err := app.svc.PutConfigSchema(cmd.Context(), service.ConfigSchemaParams{
			ConnectorTypeID: ct.ID,
			Version:         schemaVersion,
			BindingSchema:   bindingSchema,
			NodeSchema:      nodeSchema,
		})
		if err != nil {
			return err
		}

		if schemaAttachOnPut {
			if err := app.svc.AttachConfigSchema(cmd.Context(), ct.ID, cs.ID); err != nil {
				return err
			}
		}

		cmd.Printf("stored schema %s (version %s)\n", cs.ID, cs.Version)
		return nil
	},
}

var schemasAttachCmd = &cobra.Command{
	Use:   "attach <schema-id>",
	Short: "Point a connector type at a stored schema version.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if schemaTypeName == "" {
			return errors.New("--type is required")
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ct, err := app.st.GetConnectorTypeByName(cmd.Context(), schemaTypeName)
		if err != nil {
			return err
		}
		if err := app.svc.AttachConfigSchema(cmd.Context(), ct.ID, args[0]); err != nil {
			return err
		}

		cmd.Printf("attached schema %s to %s\n", args[0], ct.Name)
		return nil
	},
}

var schemasDeleteCmd = &cobra.Command{
	Use:   "delete <schema-id>",
	Short: "Delete an unreferenced schema version.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.svc.DeleteConfigSchema(cmd.Context(), args[0]); err != nil {
			return err
		}
		cmd.Println("schema deleted")
		return nil
	},
}

func readSchemaFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}

func init() {
	schemasCmd.AddCommand(schemasPutCmd, schemasAttachCmd, schemasDeleteCmd)

	schemasPutCmd.Flags().StringVar(&schemaTypeName, "type", "", "Connector type name")
	schemasPutCmd.Flags().StringVar(&schemaVersion, "version", "", "Schema version string")
	schemasPutCmd.Flags().StringVar(&schemaBindingFile, "binding-schema", "", "Path to the binding-tier schema document")
	schemasPutCmd.Flags().StringVar(&schemaNodeFile, "node-schema", "", "Path to the node-tier schema document")
	schemasPutCmd.Flags().BoolVar(&schemaAttachOnPut, "attach", false, "Attach the schema to the type after storing it")

	schemasAttachCmd.Flags().StringVar(&schemaTypeName, "type", "", "Connector type name")
}

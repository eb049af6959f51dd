package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/bindhub/bindhub/internal/model"
	"github.com/bindhub/bindhub/internal/service"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Manage connector types.",
}

var (
	typeName            string
	typePersistPipedoc  bool
	typeMaxInlineSize   int64
	typeHydrationPolicy string
	typeCustomConfig    string
	typeDisplayName     string
	typeOwner           string
	typeDocsURL         string
	typeTags            []string
)

var typesRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a connector type with its default configuration.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		custom, err := parseCustomConfig(typeCustomConfig)
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ct, err := app.svc.RegisterConnectorType(cmd.Context(), service.ConnectorTypeParams{
			Name: typeName,
			Defaults: model.TypedDefaults{
				PersistPipedoc:     typePersistPipedoc,
				MaxInlineSizeBytes: typeMaxInlineSize,
				HydrationPolicy:    model.HydrationPolicy(typeHydrationPolicy),
			},
			CustomConfig: custom,
			DisplayName:  typeDisplayName,
			Owner:        typeOwner,
			DocsURL:      typeDocsURL,
			Tags:         typeTags,
		})
		if err != nil {
			return err
		}

		cmd.Printf("registered connector type %s (%s)\n", ct.Name, ct.ID)
		return nil
	},
}

var typesShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a connector type by name.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ct, err := app.st.GetConnectorTypeByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, ct)
	},
}

var typesSetDefaultsCmd = &cobra.Command{
	Use:   "set-defaults <name>",
	Short: "Replace a connector type's default configuration.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		custom, err := parseCustomConfig(typeCustomConfig)
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ct, err := app.st.GetConnectorTypeByName(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		defaults := model.TypedDefaults{
			PersistPipedoc:     typePersistPipedoc,
			MaxInlineSizeBytes: typeMaxInlineSize,
			HydrationPolicy:    model.HydrationPolicy(typeHydrationPolicy),
		}
		if err := app.svc.UpdateConnectorTypeDefaults(cmd.Context(), ct.ID, defaults, custom); err != nil {
			return err
		}

		cmd.Printf("updated defaults for %s\n", ct.Name)
		return nil
	},
}

func requireTypeName(cmd *cobra.Command, args []string) error {
	if typeName == "" {
		return errors.New("--name is required")
	}
	return nil
}

func init() {
	typesCmd.AddCommand(typesRegisterCmd, typesShowCmd, typesSetDefaultsCmd)

	typesRegisterCmd.Flags().StringVar(&typeName, "name", "", "Connector type name (e.g. s3, jdbc)")
	typesRegisterCmd.Flags().StringVar(&typeDisplayName, "display-name", "", "Human-readable name")
	typesRegisterCmd.Flags().StringVar(&typeOwner, "owner", "", "Owning team")
	typesRegisterCmd.Flags().StringVar(&typeDocsURL, "docs-url", "", "Documentation link")
	typesRegisterCmd.Flags().StringSliceVar(&typeTags, "tag", nil, "Tag (repeatable)")
	typesRegisterCmd.PreRunE = requireTypeName

	for _, c := range []*cobra.Command{typesRegisterCmd, typesSetDefaultsCmd} {
		c.Flags().BoolVar(&typePersistPipedoc, "persist-pipedoc", false, "Persist pipeline documents by default")
		c.Flags().Int64Var(&typeMaxInlineSize, "max-inline-size", 0, "Max inline payload size in bytes (0 falls back to the system default)")
		c.Flags().StringVar(&typeHydrationPolicy, "hydration-policy", "", "Hydration policy: AUTO, ALWAYS_REF, or ALWAYS_INLINE")
		c.Flags().StringVar(&typeCustomConfig, "custom-config", "", "Default custom config as a JSON object")
	}
}

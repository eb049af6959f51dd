package main

import (
	"bufio"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bindhub/bindhub/internal/service"
)

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "Manage account bindings and their credentials.",
}

var (
	bindingAccountID    string
	bindingTypeName     string
	bindingName         string
	bindingCustomConfig string
	bindingOverrides    string
	bindingActive       bool
	bindingReason       string
	credentialStdin     bool
	showCredential      bool
)

// guardCredentialOutput refuses to write a plaintext credential to a pipe
// or file unless the caller opted in, so credentials do not end up in shell
// histories and CI logs by accident.
func guardCredentialOutput() error {
	if showCredential {
		return nil
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return nil
	}
	return errors.New("stdout is not a terminal; pass --show-credential to print the credential anyway")
}

var bindingsRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a binding; prints the binding id and its credential once.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindingAccountID == "" {
			return errors.New("--account is required")
		}
		if bindingTypeName == "" {
			return errors.New("--type is required")
		}
		if err := guardCredentialOutput(); err != nil {
			return err
		}
		custom, err := parseCustomConfig(bindingCustomConfig)
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()
		if app.cfg.DirectoryURL == "" {
			return errors.New("DIRECTORY_URL is required to register bindings")
		}

		ct, err := app.st.GetConnectorTypeByName(cmd.Context(), bindingTypeName)
		if err != nil {
			return err
		}

		binding, plaintext, err := app.svc.Register(cmd.Context(), service.RegisterParams{
			AccountID:       bindingAccountID,
			ConnectorTypeID: ct.ID,
			Name:            bindingName,
			CustomConfig:    custom,
			TypedOverrides:  []byte(bindingOverrides),
		})
		if err != nil {
			return err
		}

		cmd.Printf("binding id: %s\n", binding.ID)
		cmd.Printf("credential: %s\n", plaintext)
		cmd.Println("store the credential now; it cannot be shown again")
		return nil
	},
}

var bindingsRotateCmd = &cobra.Command{
	Use:   "rotate <binding-id>",
	Short: "Rotate a binding's credential; the old one stops working immediately.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := guardCredentialOutput(); err != nil {
			return err
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		plaintext, err := app.svc.Rotate(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		cmd.Printf("credential: %s\n", plaintext)
		cmd.Println("store the credential now; it cannot be shown again")
		return nil
	},
}

var bindingsSetStatusCmd = &cobra.Command{
	Use:   "set-status <binding-id>",
	Short: "Enable or disable a binding.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		changed, err := app.svc.SetStatus(cmd.Context(), args[0], bindingActive, bindingReason)
		if err != nil {
			return err
		}
		if !changed {
			cmd.Println("already in the requested state; nothing to do")
			return nil
		}
		if bindingActive {
			cmd.Println("binding enabled")
		} else {
			cmd.Println("binding disabled")
		}
		return nil
	},
}

var bindingsValidateCmd = &cobra.Command{
	Use:   "validate <binding-id>",
	Short: "Check a credential against a binding and print the effective config.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plaintext, err := resolveCredential(cmd)
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		result, err := app.svc.ValidateCredential(cmd.Context(), args[0], plaintext)
		if err != nil {
			return err
		}
		if !result.Valid {
			cmd.Printf("invalid: %s\n", result.Reason)
			return &exitError{code: 1, silent: true}
		}

		cmd.Println("valid")
		return printJSON(cmd, result.Config)
	},
}

var bindingsSetConfigCmd = &cobra.Command{
	Use:   "set-config <binding-id>",
	Short: "Replace a binding's custom config and typed override document.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		custom, err := parseCustomConfig(bindingCustomConfig)
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.svc.UpdateBindingConfig(cmd.Context(), args[0], custom, []byte(bindingOverrides)); err != nil {
			return err
		}
		cmd.Println("binding config updated")
		return nil
	},
}

var bindingsResolveCmd = &cobra.Command{
	Use:   "resolve <binding-id>",
	Short: "Print a binding's effective configuration without a credential check.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		cfg, err := app.svc.ResolveEffectiveConfig(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, cfg)
	},
}

var bindingsShowCmd = &cobra.Command{
	Use:   "show <binding-id>",
	Short: "Show a binding.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		binding, err := app.svc.GetBinding(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		binding.CredentialHash = "(redacted)"
		return printJSON(cmd, binding)
	},
}

var bindingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an account's bindings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bindingAccountID == "" {
			return errors.New("--account is required")
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		bindings, err := app.st.ListBindingsByAccount(cmd.Context(), bindingAccountID)
		if err != nil {
			return err
		}
		for i := range bindings {
			bindings[i].CredentialHash = "(redacted)"
		}
		return printJSON(cmd, bindings)
	},
}

// resolveCredential reads the credential to validate: from stdin when
// --credential-stdin is set, otherwise via a no-echo terminal prompt.
func resolveCredential(cmd *cobra.Command) (string, error) {
	if credentialStdin {
		in, err := os.Stdin.Stat()
		if err != nil {
			return "", err
		}
		if in.Mode()&os.ModeCharDevice != 0 {
			return "", errors.New("stdin is a terminal; omit --credential-stdin to prompt")
		}
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", errors.New("credential is empty")
		}
		credential := strings.TrimRight(scanner.Text(), "\r\n")
		if credential == "" {
			return "", errors.New("credential is empty")
		}
		return credential, nil
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no credential provided (use --credential-stdin)")
	}

	cmd.Print("Credential: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", errors.New("credential is empty")
	}
	return string(raw), nil
}

func init() {
	bindingsCmd.AddCommand(
		bindingsRegisterCmd, bindingsRotateCmd, bindingsSetStatusCmd, bindingsSetConfigCmd,
		bindingsValidateCmd, bindingsResolveCmd, bindingsShowCmd, bindingsListCmd,
	)

	bindingsRegisterCmd.Flags().StringVar(&bindingAccountID, "account", "", "Account id")
	bindingsRegisterCmd.Flags().StringVar(&bindingTypeName, "type", "", "Connector type name")
	bindingsRegisterCmd.Flags().StringVar(&bindingName, "name", "", "Binding name")
	bindingsRegisterCmd.Flags().StringVar(&bindingCustomConfig, "custom-config", "", "Binding custom config as a JSON object")
	bindingsRegisterCmd.Flags().StringVar(&bindingOverrides, "overrides", "", "Typed override document as JSON")
	bindingsRegisterCmd.Flags().BoolVar(&showCredential, "show-credential", false, "Print the credential even when stdout is not a terminal")
	bindingsRotateCmd.Flags().BoolVar(&showCredential, "show-credential", false, "Print the credential even when stdout is not a terminal")

	bindingsSetConfigCmd.Flags().StringVar(&bindingCustomConfig, "custom-config", "", "Binding custom config as a JSON object")
	bindingsSetConfigCmd.Flags().StringVar(&bindingOverrides, "overrides", "", "Typed override document as JSON")

	bindingsSetStatusCmd.Flags().BoolVar(&bindingActive, "active", false, "Target state")
	bindingsSetStatusCmd.Flags().StringVar(&bindingReason, "reason", "", "Reason recorded with the change")

	bindingsValidateCmd.Flags().BoolVar(&credentialStdin, "credential-stdin", false, "Read the credential from stdin")

	bindingsListCmd.Flags().StringVar(&bindingAccountID, "account", "", "Account id")
}

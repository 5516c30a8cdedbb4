package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/httpapi"
)

type rootOptions struct {
	configFile string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "memberdesk",
		Short:        "Membership administration backend for cooperatives",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML configuration file (environment variables override it)")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
		newImportCommand(opts),
		newExportCommand(opts),
		newStaffCommand(opts),
		newDuesCommand(opts),
	)
	return root
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and the public application form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, opts)
		},
	}
}

func serve(cmd *cobra.Command, opts *rootOptions) error {
	app, err := openApp(cmd.Context(), opts.configFile)
	if err != nil {
		return err
	}
	logf := app.logger.Sugar().Infof
	logStartupWarnings(app.runtime, app.logger.Sugar().Warnf)

	authProvider, tokenIssuer, err := app.authentication()
	if err != nil {
		_ = app.Close()
		return err
	}
	router, err := makeRouter(httpapi.Dependencies{
		AuthProvider: authProvider,
		TokenIssuer:  tokenIssuer,
		Service:      app.service,
		Logger:       app.logger,
		Runtime:      app.runtime,
		TokenTTL:     app.config.Auth.TokenTTL,
		Cleanup:      app.Close,
	})
	if err != nil {
		_ = app.Close()
		return err
	}

	addr := strings.TrimSpace(app.config.ListenAddr)
	if addr == "" {
		addr = httpapi.DefaultListenAddr(app.runtime.Mode)
	}
	err = runServer(addr, router, func(server *http.Server, listener net.Listener) error {
		return server.Serve(listener)
	}, logf)
	if err != nil {
		_ = router.Close()
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), opts.configFile)
			if err != nil {
				return err
			}
			defer app.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", app.repo.Dialect())
			return nil
		},
	}
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import applicants and members from a CSV file",
		Long:  "Import applicants and members from a CSV file. Every row is validated first; nothing is written when a row is invalid.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			app, err := openApp(cmd.Context(), opts.configFile)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.service.ImportMembers(cmd.Context(), cliAuth, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows (%d members)\n", result.Imported, result.Members)
			return nil
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		acceptedOnly bool
		output       string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export applicants and members as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), opts.configFile)
			if err != nil {
				return err
			}
			defer app.Close()

			body, err := app.service.ExportMembers(cmd.Context(), cliAuth, acceptedOnly)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			return os.WriteFile(output, body, 0o600)
		},
	}
	cmd.Flags().BoolVar(&acceptedOnly, "accepted", false, "only export accepted members")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

// staffSeed is one entry of a `staff add --from` file.
type staffSeed struct {
	Login    string   `yaml:"login"`
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Groups   []string `yaml:"groups"`
}

type staffSeedFile struct {
	Staff []staffSeed `yaml:"staff"`
}

func newStaffCommand(opts *rootOptions) *cobra.Command {
	staff := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}

	var (
		seed     staffSeed
		fromFile string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Create staff accounts from flags or a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seeds := []staffSeed{seed}
			if fromFile != "" {
				loaded, err := readStaffSeeds(fromFile)
				if err != nil {
					return err
				}
				seeds = loaded
			}

			app, err := openApp(cmd.Context(), opts.configFile)
			if err != nil {
				return err
			}
			defer app.Close()

			for _, entry := range seeds {
				created, err := app.service.SeedStaff(cmd.Context(), domain.Staff{
					Login:    entry.Login,
					Email:    entry.Email,
					Password: entry.Password,
					Groups:   entry.Groups,
				})
				if err != nil {
					return fmt.Errorf("staff %q: %w", entry.Login, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created staff %s (%s)\n", created.Login, strings.Join(created.Groups, ", "))
			}
			return nil
		},
	}
	add.Flags().StringVar(&seed.Login, "login", "", "login name")
	add.Flags().StringVar(&seed.Email, "email", "", "email address")
	add.Flags().StringVar(&seed.Password, "password", "", "initial password")
	add.Flags().StringSliceVar(&seed.Groups, "group", []string{domain.RoleAccountant}, "groups (accountant, admin)")
	add.Flags().StringVar(&fromFile, "from", "", "YAML file with a list of staff accounts")

	staff.AddCommand(add)
	return staff
}

func readStaffSeeds(path string) ([]staffSeed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var seeds staffSeedFile
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&seeds); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read staff file %q: %w", path, err)
	}
	if len(seeds.Staff) == 0 {
		return nil, fmt.Errorf("staff file %q lists no accounts", path)
	}
	return seeds.Staff, nil
}

func newDuesCommand(opts *rootOptions) *cobra.Command {
	dues := &cobra.Command{
		Use:   "dues",
		Short: "Run the yearly dues invoicing",
	}

	var year, count int
	invoice := &cobra.Command{
		Use:   "invoice",
		Short: "Invoice the dues of members not yet invoiced for a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd.Context(), opts.configFile)
			if err != nil {
				return err
			}
			defer app.Close()

			deliveries, err := app.service.InvoiceDuesBatch(cmd.Context(), cliAuth, year, count)
			out := cmd.OutOrStdout()
			failed := 0
			for _, delivery := range deliveries {
				status := "sent"
				if !delivery.Delivered {
					status = "not sent: " + delivery.Error
					failed++
				}
				fmt.Fprintf(out, "%s\t%d\t%s\t%s\n",
					delivery.Invoice.InvoiceNoString,
					delivery.Invoice.MembershipNumber,
					delivery.Invoice.InvoiceAmount.StringFixed(2),
					status,
				)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d invoices issued, %d not delivered\n", len(deliveries), failed)
			return nil
		},
	}
	invoice.Flags().IntVar(&year, "year", 0, "business year")
	invoice.Flags().IntVar(&count, "count", 100, "maximum number of members to invoice")
	_ = invoice.MarkFlagRequired("year")

	dues.AddCommand(invoice)
	return dues
}

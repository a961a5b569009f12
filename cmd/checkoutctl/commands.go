package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mamadbah2/selfcheckout/internal/app"
)

const dateLayout = "2006-01-02"

type rootOptions struct {
	envFile string
	verbose bool
}

type buildFunc func(ctx context.Context, opts rootOptions) (*app.Services, error)

func newRootCmd(build buildFunc) *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "Staff tool for the self-checkout store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env", "", "Env file to load (default .env)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at debug level")

	// withServices opens the store for one command and always closes it.
	withServices := func(run func(ctx context.Context, svc *app.Services, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			svc, err := build(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close(ctx) }()
			return run(ctx, svc, c.OutOrStdout(), args)
		}
	}

	cmd.AddCommand(
		newSeedCmd(withServices),
		newProductsCmd(withServices),
		newSalesCmd(withServices),
		newTokensCmd(withServices),
		newReportCmd(withServices),
	)
	return cmd
}

type wrapFunc func(run func(ctx context.Context, svc *app.Services, out io.Writer, args []string) error) func(*cobra.Command, []string) error

func newSeedCmd(wrap wrapFunc) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert catalog products whose barcode is not present yet",
		Args:  cobra.NoArgs,
		RunE: wrap(func(ctx context.Context, svc *app.Services, out io.Writer, _ []string) error {
			added, err := svc.SeedCatalog(ctx, file)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "seeded %d product(s)\n", added)
			return err
		}),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file (default: built-in catalog)")
	return cmd
}

func newProductsCmd(wrap wrapFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "products", Short: "Catalog commands"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the catalog",
		Args:  cobra.NoArgs,
		RunE: wrap(func(ctx context.Context, svc *app.Services, out io.Writer, _ []string) error {
			products, err := svc.Inventory.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBARCODE\tNAME\tPRICE\tTAX\tSTOCK")
			for _, p := range products {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", p.ID, p.Barcode, p.Name, p.Price, p.Tax, p.Stock)
			}
			return w.Flush()
		}),
	})
	return cmd
}

func newSalesCmd(wrap wrapFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "sales", Short: "Sales log commands"}

	var date string
	list := &cobra.Command{
		Use:   "list",
		Short: "List sales, newest first",
		Args:  cobra.NoArgs,
		RunE: wrap(func(ctx context.Context, svc *app.Services, out io.Writer, _ []string) error {
			sales, err := svc.Reporting.ListSales(ctx)
			if date != "" {
				day, parseErr := time.ParseInLocation(dateLayout, date, svc.Reporting.Location())
				if parseErr != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", parseErr)
				}
				sales, err = svc.Reporting.SalesOn(ctx, day)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tSALE\tTOKEN\tUNITS\tTOTAL")
			for _, s := range sales {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					s.Timestamp.In(svc.Reporting.Location()).Format("2006-01-02 15:04:05"), s.ID, s.TokenID, s.ItemCount(), s.Total)
			}
			return w.Flush()
		}),
	}
	list.Flags().StringVar(&date, "date", "", "Only this day (YYYY-MM-DD)")
	cmd.AddCommand(list)
	return cmd
}

func newTokensCmd(wrap wrapFunc) *cobra.Command {
	cmd := &cobra.Command{Use: "tokens", Short: "Exit token commands"}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "verify <token-id>",
			Short: "Verify and consume an exit token",
			Args:  cobra.ExactArgs(1),
			RunE: wrap(func(ctx context.Context, svc *app.Services, out io.Writer, args []string) error {
				res, err := svc.Verification.Verify(ctx, args[0])
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(out, res.Message); err != nil {
					return err
				}
				return res.Err()
			}),
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Expire every active token past its validity window",
			Args:  cobra.NoArgs,
			RunE: wrap(func(ctx context.Context, svc *app.Services, out io.Writer, _ []string) error {
				n, err := svc.Verification.ExpireStale(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "expired %d token(s)\n", n)
				return err
			}),
		},
	)
	return cmd
}

func newReportCmd(wrap wrapFunc) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build, archive and export the daily report",
		Args:  cobra.NoArgs,
		RunE: wrap(func(ctx context.Context, svc *app.Services, out io.Writer, _ []string) error {
			day := time.Now()
			if date != "" {
				parsed, err := time.ParseInLocation(dateLayout, date, svc.Reporting.Location())
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				day = parsed
			}
			report, err := svc.Reporting.RunDailyReport(ctx, day)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s: %d sale(s), %d unit(s), revenue %s\n%s\n",
				report.Date.Format(dateLayout), report.SalesCount, report.UnitsSold, report.Revenue, report.Summary)
			return err
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "Report day (YYYY-MM-DD, default today)")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/Dhoini/Entitlement-microservice/internal/domain"
	"github.com/Dhoini/Entitlement-microservice/internal/metrics"
	"github.com/Dhoini/Entitlement-microservice/internal/repository"
	"github.com/Dhoini/Entitlement-microservice/internal/service"
	"github.com/Dhoini/Entitlement-microservice/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// backend хранилище и публикатор событий, с которыми работают команды
type backend struct {
	repo   repository.EntitlementRepository
	events service.EventPublisher
	close  func()
}

type backendOpener func(ctx context.Context, dsn string, log *logger.Logger) (*backend, error)

type cliOptions struct {
	dsn     string
	verbose bool
}

func newRootCmd(open backendOpener) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "entitlementctl",
		Short:         "Inspect and override VPN membership entitlements",
		Long:          `Operator tool for reading entitlement records and setting tiers without going through Stripe.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (default: $DATABASE_DSN)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log database activity")

	withService := func(cmd *cobra.Command, fn func(svc *service.EntitlementService) error) error {
		log := logger.Nop()
		if opts.verbose {
			log = logger.New(logger.DEBUG)
		}
		b, err := open(cmd.Context(), opts.dsn, log)
		if err != nil {
			return err
		}
		defer b.close()
		svc := service.NewEntitlementService(b.repo, metrics.NewEntitlementMetrics(prometheus.NewRegistry(), log), log)
		return fn(svc.WithEvents(b.events))
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "show USER_ID",
			Short: "Print a user's entitlement record",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd, func(svc *service.EntitlementService) error {
					rec, err := svc.Get(cmd.Context(), args[0])
					if err != nil {
						return fmt.Errorf("get %s: %w", args[0], err)
					}
					return printJSON(cmd, rec)
				})
			},
		},
		&cobra.Command{
			Use:   "set-tier USER_ID TIER",
			Short: "Set a user's tier (none, basic, pro, family)",
			Long: `Set a user's membership tier directly. Paid tiers activate the record,
"none" deactivates it. Provider references are left untouched and open
dashboards receive the change immediately.`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withService(cmd, func(svc *service.EntitlementService) error {
					rec, err := svc.SetTier(cmd.Context(), args[0], args[1])
					if err != nil {
						return fmt.Errorf("set tier for %s: %w", args[0], err)
					}
					return printJSON(cmd, rec)
				})
			},
		},
		&cobra.Command{
			Use:   "plans",
			Short: "List tiers and the regions each one unlocks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIER\tREGIONS")
				for _, tier := range append([]domain.Tier{domain.TierNone}, domain.PaidTiers...) {
					regions := domain.AccessibleRegions(tier)
					names := make([]string, len(regions))
					for i, r := range regions {
						names[i] = string(r)
					}
					if len(names) == 0 {
						names = []string{"-"}
					}
					fmt.Fprintf(w, "%s\t%s\n", tier, strings.Join(names, ", "))
				}
				return w.Flush()
			},
		},
	)
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

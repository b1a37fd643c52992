package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/service"
	"github.com/vibast-solutions/ms-go-payment-reconciler/app/status"
	"github.com/vibast-solutions/ms-go-payment-reconciler/config"
)

var (
	workerMode bool
)

type sweepJob struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile provider payment statuses",
}

var reconcileCoraCmd = &cobra.Command{
	Use:   "cora",
	Short: "Reconcile PIX and boleto payments against Cora",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(status.ProviderCora)
	},
}

var reconcileMercadoPagoCmd = &cobra.Command{
	Use:   "mercadopago",
	Short: "Reconcile card payments against MercadoPago",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(status.ProviderMercadoPago)
	},
}

var reconcileAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Reconcile every configured provider",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand()
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.AddCommand(reconcileCoraCmd)
	reconcileCmd.AddCommand(reconcileMercadoPagoCmd)
	reconcileCmd.AddCommand(reconcileAllCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

// runCommand sweeps the given providers, or all configured ones when none
// are named.
func runCommand(codes ...string) {
	cfg, app, cleanup := mustCreateApp()
	defer cleanup()

	if len(codes) == 0 {
		codes = app.providerCodes()
	}
	if len(codes) == 0 {
		logrus.Fatal("No payment provider is configured")
	}

	jobs := make([]sweepJob, 0, len(codes))
	for _, code := range codes {
		jobs = append(jobs, newSweepJob(cfg, app, code))
	}

	if workerMode {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		runWorkers(ctx, jobs)
		return
	}

	ctx := context.Background()
	for _, job := range jobs {
		_ = service.RunJob(ctx, job.name, job.run)
	}
}

func newSweepJob(cfg *config.Config, app *application, code string) sweepJob {
	reconciler := app.reconciler(code)
	return sweepJob{
		name:     "reconcile_" + code,
		interval: jobInterval(cfg, code),
		run: func(ctx context.Context) error {
			_, err := reconciler.Sweep(ctx)
			return err
		},
	}
}

func jobInterval(cfg *config.Config, code string) time.Duration {
	if code == status.ProviderMercadoPago {
		return cfg.Jobs.MercadoPagoInterval
	}
	return cfg.Jobs.CoraInterval
}

// runWorkers blocks until ctx is cancelled and every loop has returned.
func runWorkers(ctx context.Context, jobs []sweepJob) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job sweepJob) {
			defer wg.Done()
			if err := service.Schedule(ctx, job.name, job.interval, job.run); err != nil {
				logrus.WithError(err).WithField("job", job.name).Fatal("invalid worker interval")
			}
		}(job)
	}
	wg.Wait()
}

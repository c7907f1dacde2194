package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/plexsphere/ferrix/internal/clusterapi"
	"github.com/plexsphere/ferrix/internal/config"
	"github.com/plexsphere/ferrix/internal/introspect"
	"github.com/plexsphere/ferrix/internal/metrics"
	"github.com/plexsphere/ferrix/internal/proxy"
	"github.com/plexsphere/ferrix/internal/reconcile"
	"github.com/plexsphere/ferrix/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the ferrix proxy",
	Long: "Start the ferrix proxy daemon. Binds every configured entrypoint,\n" +
		"subscribes to the cluster API for IngressRoute changes, and serves\n" +
		"requests until terminated.",
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(_ *cobra.Command, _ []string) error {
	cfg, err := config.ParseConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("ferrix run: %w", err)
	}

	logger := setupLogger(logLevel)
	logger.Info("starting ferrix", "version", buildVersion, "entry_points", cfg.EntryPointNames())

	restCfg, err := buildRestConfig(kubeconfig)
	if err != nil {
		return fmt.Errorf("ferrix run: cluster config: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("ferrix run: dynamic client: %w", err)
	}
	typedClient, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return fmt.Errorf("ferrix run: typed client: %w", err)
	}
	clusterClient := clusterapi.NewClient(dynamicClient, typedClient, logger)

	reconcileCfg := reconcile.Config{EntryPoints: cfg.EntryPointNames()}
	reconcileCfg.ApplyDefaults()
	if err := reconcileCfg.Validate(); err != nil {
		return fmt.Errorf("ferrix run: %w", err)
	}

	dispatch := reconcile.NewDispatcher(reconcileCfg.EntryPoints)
	reg := metrics.NewRegistry()
	reconciler := reconcile.NewReconciler(clusterClient, clusterClient, dispatch, logger).WithMetrics(reg)

	entrypoints := make([]supervisor.EntryPoint, 0, len(cfg.EntryPoints))
	for _, ep := range cfg.EntryPoints {
		table, ok := dispatch.Lookup(ep.Name)
		if !ok {
			return fmt.Errorf("ferrix run: entrypoint %q not registered in dispatcher", ep.Name)
		}
		hook := proxy.NewHook(table, logger).WithMetrics(ep.Name, reg)
		entrypoints = append(entrypoints, supervisor.EntryPoint{
			Name:    ep.Name,
			Addr:    fmt.Sprintf("[::]:%d", ep.Port),
			Handler: hook,
		})
	}

	var ancillary []supervisor.Server
	if metricsEnable {
		cfg.Metrics.Enabled = true
	}
	if cfg.Metrics.Enabled {
		ancillary = append(ancillary, metrics.NewServer(cfg.Metrics.Listen, reg))
	}
	if apiEnabled {
		ancillary = append(ancillary, &httpServer{
			addr:    fmt.Sprintf("0.0.0.0:%d", apiPort),
			handler: introspect.Mux(dispatch),
		})
	}

	sup := supervisor.New(entrypoints, reconciler, ancillary, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := sup.Run(ctx); err != nil {
		logger.Error("ferrix stopped with error", "error", err)
		return fmt.Errorf("ferrix run: %w", err)
	}
	logger.Info("ferrix stopped")
	return nil
}

// buildRestConfig resolves a cluster API rest.Config from an explicit
// kubeconfig path, falling back to in-cluster config when path is empty —
// the standard client-go flag every CRD-watching example in this corpus
// exposes.
func buildRestConfig(path string) (*rest.Config, error) {
	if path == "" {
		return rest.InClusterConfig()
	}
	return clientcmd.BuildConfigFromFlags("", path)
}

// httpServer adapts a plain http.Handler to the supervisor.Server shape,
// for the introspection endpoint which has no metrics-style registry to
// own construction of its own Server type.
type httpServer struct {
	addr    string
	handler http.Handler
}

func (s *httpServer) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.handler}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("introspect: serve: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		_ = srv.Shutdown(context.Background())
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// levelTrace is one level below slog.LevelDebug, for the "trace" setting
// this core accepts on top of slog's four built-in levels.
const levelTrace = slog.LevelDebug - 4

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "trace":
		lvl = levelTrace
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "off":
		lvl = slog.Level(math.MaxInt)
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

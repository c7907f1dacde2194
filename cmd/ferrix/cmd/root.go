// Package cmd implements the ferrix CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	cfgFile       string
	logLevel      string
	kubeconfig    string
	apiEnabled    bool
	apiPort       int
	metricsEnable bool
)

// Build info set from main.
var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// SetVersionInfo sets the version info from build-time ldflags.
func SetVersionInfo(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("ferrix version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

var rootCmd = &cobra.Command{
	Use:   "ferrix",
	Short: "ferrix is a dynamic HTTP reverse proxy",
	Long: "ferrix is a reverse proxy that continuously syncs its routing table from\n" +
		"IngressRoute custom resources in a Kubernetes-style cluster API, routing\n" +
		"incoming requests by Host header to round-robin backend pools.",
	// No Run function — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config-file", "c", "/etc/ferrix/config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "path to a kubeconfig file (empty uses in-cluster config)")
	rootCmd.PersistentFlags().BoolVar(&apiEnabled, "api-enabled", false, "enable the introspection endpoint")
	rootCmd.PersistentFlags().IntVar(&apiPort, "api-port", 8080, "port for the introspection endpoint")
	rootCmd.PersistentFlags().BoolVar(&metricsEnable, "metrics-enabled", false, "expose the Prometheus /metrics endpoint")

	rootCmd.Version = buildVersion
	rootCmd.SetVersionTemplate(fmt.Sprintf("ferrix version {{.Version}}\ncommit: %s\nbuilt: %s\n", buildCommit, buildDate))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

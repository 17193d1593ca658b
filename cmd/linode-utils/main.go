package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/linode-utils/internal/config"
	"github.com/jbweber/linode-utils/internal/job"
	"github.com/jbweber/linode-utils/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	linodeRC     string
	sshKey       string
	apiURL       string
	pollInterval time.Duration
	timeout      time.Duration
	logLevel     string
	logFormat    string
	metricsFile  string
	natsURL      string

	// timeoutSet records that --timeout was given on the command line.
	timeoutSet bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:   "linode-utils",
	Short: "linode-utils - Linode provisioning tool",
	Long: `linode-utils provisions, boots, shuts down and tears down Linodes
through the provider's asynchronous job API.

Every command resolves a linode by label and refuses to touch it unless it
carries the safety display group (default "automatable").`,
	Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.linodeRC, "linoderc", "", "Path to the credentials file (default ~/.linoderc)")
	pf.StringVar(&flags.sshKey, "ssh-key", "", "Path to the operator's public key (default ~/.ssh/id_rsa.pub)")
	pf.StringVar(&flags.apiURL, "api-url", "", "Override the API endpoint")
	pf.DurationVar(&flags.pollInterval, "poll-interval", job.DefaultInterval, "Delay between job status polls")
	pf.DurationVar(&flags.timeout, "timeout", config.DefaultTimeout, "Maximum time to wait for a batch of jobs")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	pf.StringVar(&flags.logFormat, "log-format", logging.FormatText, "Log format (text, json)")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	pf.StringVar(&flags.natsURL, "nats-url", "", "Publish lifecycle events to this NATS server")

	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(shutdownCmd)
	rootCmd.AddCommand(deprovisionCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
}

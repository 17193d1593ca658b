package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/config"
	"github.com/jbweber/linode-utils/internal/events"
	"github.com/jbweber/linode-utils/internal/job"
	"github.com/jbweber/linode-utils/internal/linode"
	"github.com/jbweber/linode-utils/internal/logging"
	"github.com/jbweber/linode-utils/internal/machine"
	"github.com/jbweber/linode-utils/internal/metrics"
)

// session carries everything one command invocation needs.
type session struct {
	settings *config.Settings
	client   *linode.Client
	waiter   *job.Waiter
	log      logrus.FieldLogger
	runID    string
	metrics  *metrics.Recorder
	events   events.Publisher

	metricsFile string
	closers     []func()
}

// newSession loads settings, builds the logger and connects the optional
// event publisher.
func newSession(cmd *cobra.Command) (*session, error) {
	logger, err := logging.New(flags.logLevel, flags.logFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	settings, err := config.Load(config.LoadOptions{
		LinodeRC:   flags.linodeRC,
		SSHKeyPath: flags.sshKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	f := flags
	f.timeoutSet = cmd.Flags().Changed("timeout")
	applyFlags(f, settings)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := logger.WithField("run_id", runID)

	s := &session{
		settings:    settings,
		client:      linode.NewClient(settings.APIURL, settings.APIKey, log),
		log:         log,
		runID:       runID,
		metricsFile: flags.metricsFile,
		events:      events.Nop{},
	}
	if s.metricsFile != "" {
		s.metrics = metrics.NewRecorder()
	}

	s.waiter = job.NewWaiter(s.client, log)
	s.waiter.Interval = settings.PollInterval
	s.waiter.Timeout = settings.Timeout
	s.waiter.Metrics = s.metrics

	if flags.natsURL != "" {
		pub, err := events.Connect(flags.natsURL, "linode-utils", log)
		if err != nil {
			return nil, err
		}
		s.events = pub
		s.closers = append(s.closers, pub.Close)
	}

	return s, nil
}

// applyFlags copies the command line settings over the loaded ones. An
// explicit --timeout 0 removes the bound on job waits.
func applyFlags(f globalFlags, s *config.Settings) {
	if f.apiURL != "" {
		s.APIURL = f.apiURL
	}
	if f.pollInterval > 0 {
		s.PollInterval = f.pollInterval
	}
	if f.timeout > 0 || f.timeoutSet {
		s.Timeout = f.timeout
	}
}

// Close writes the metrics textfile and releases connections.
func (s *session) Close() {
	if s.metricsFile != "" {
		if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
			s.log.WithFields(logrus.Fields{
				"path": s.metricsFile,
				"err":  err,
			}).Warn("failed to write metrics")
		}
	}
	for _, c := range s.closers {
		c()
	}
}

// machineOptions returns the options for a Machine in the given group.
func (s *session) machineOptions(group string, node *v1alpha1.Node) machine.Options {
	return machine.Options{
		SafetyGroup: resolveGroup(group, node, s.settings.SafetyGroup),
		Waiter:      s.waiter,
		Log:         s.log,
		Events:      s.events,
		RunID:       s.runID,
		Node:        node,
	}
}

// resolveGroup picks the safety group: the --group flag, then the document,
// then the configured default.
func resolveGroup(flagGroup string, node *v1alpha1.Node, configured string) string {
	if flagGroup != "" {
		return flagGroup
	}
	if node != nil && node.Spec.Group != "" {
		return node.Spec.Group
	}
	return configured
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}

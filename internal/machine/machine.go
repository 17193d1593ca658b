package machine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/bootconfig"
	"github.com/jbweber/linode-utils/internal/disk"
	"github.com/jbweber/linode-utils/internal/events"
	"github.com/jbweber/linode-utils/internal/job"
	"github.com/jbweber/linode-utils/internal/locate"
	"github.com/jbweber/linode-utils/internal/logging"
	"github.com/jbweber/linode-utils/internal/provider"
	"github.com/jbweber/linode-utils/internal/status"
)

// ErrSafetyGroupViolation is returned when a linode is not in the group
// designated for automation.
var ErrSafetyGroupViolation = errors.New("linode is not in the safety group")

// Options configures a Machine. Zero values are replaced with defaults.
type Options struct {
	// SafetyGroup is the display group the linode must carry.
	// Defaults to "automatable".
	SafetyGroup string

	// Waiter defaults to a job.Waiter polling the same client.
	Waiter *job.Waiter

	Log    logrus.FieldLogger
	Events events.Publisher

	// RunID correlates logs, events and boot config comments of one run.
	RunID string

	// Node is the document describing the linode, when there is one. The
	// machine records its status on a copy.
	Node *v1alpha1.Node

	// Now defaults to time.Now.
	Now func() time.Time
}

// Machine controls one linode. It owns the linode snapshot and replaces it
// wholesale on reload.
type Machine struct {
	client API
	waiter *job.Waiter
	log    logrus.FieldLogger
	events events.Publisher
	runID  string
	now    func() time.Time

	linode provider.Linode
	node   *v1alpha1.Node
}

// New resolves label and checks the safety group. No state-changing call is
// made before the check passes.
func New(ctx context.Context, client API, label string, opts Options) (*Machine, error) {
	group := opts.SafetyGroup
	if group == "" {
		group = v1alpha1.DefaultGroup
	}
	log := logging.OrDiscard(opts.Log)
	if opts.RunID != "" {
		log = log.WithField("run_id", opts.RunID)
	}

	l, err := locate.FindByLabel(ctx, client, label)
	if err != nil {
		return nil, err
	}
	if l.DisplayGroup != group {
		log.WithFields(logrus.Fields{
			"linode_id": l.ID,
			"label":     l.Label,
			"group":     l.DisplayGroup,
			"expected":  group,
		}).Error("refusing to operate on linode outside the safety group")
		return nil, fmt.Errorf("%w: linode %q (%d) is in group %q, expected %q",
			ErrSafetyGroupViolation, l.Label, l.ID, l.DisplayGroup, group)
	}

	waiter := opts.Waiter
	if waiter == nil {
		waiter = job.NewWaiter(client, log)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	node := v1alpha1.NewNode(label)
	if opts.Node != nil {
		node = opts.Node.DeepCopy()
		v1alpha1.SetDefaultAPIVersion(node)
	}
	node.Spec.Group = group

	m := &Machine{
		client: client,
		waiter: waiter,
		log:    log,
		events: opts.Events,
		runID:  opts.RunID,
		now:    now,
	}
	m.setSnapshot(l)
	m.node = node
	m.observe()
	node.SetPhase(v1alpha1.NodePhaseLoaded)

	m.logger().WithField("status", l.Status).Info("linode loaded")
	m.emit(ctx, events.TypeLoaded, "load", nil)
	return m, nil
}

// Linode returns the current snapshot.
func (m *Machine) Linode() provider.Linode {
	return m.linode
}

// ID returns the linode ID.
func (m *Machine) ID() provider.LinodeID {
	return m.linode.ID
}

// Phase returns the machine's phase in this run.
func (m *Machine) Phase() v1alpha1.NodePhase {
	return m.node.GetPhase()
}

// Node returns a copy of the document tracking this machine.
func (m *Machine) Node() *v1alpha1.Node {
	return m.node.DeepCopy()
}

// Disks returns disk operations bound to this linode.
func (m *Machine) Disks() *disk.Ops {
	return disk.NewOps(m.client, m.waiter, m.linode.ID, m.log)
}

// Configs returns boot config operations bound to this linode.
func (m *Machine) Configs() *bootconfig.Ops {
	return &bootconfig.Ops{
		Client:   m.client,
		Disks:    m.Disks(),
		LinodeID: m.linode.ID,
		Log:      m.log,
		Now:      m.now,
		RunID:    m.runID,
	}
}

// Reload fetches the linode by ID and replaces the snapshot.
func (m *Machine) Reload(ctx context.Context) error {
	l, err := locate.FindByID(ctx, m.client, m.linode.ID)
	if err != nil {
		return fmt.Errorf("failed to reload linode %d: %w", m.linode.ID, err)
	}
	m.setSnapshot(l)
	m.observe()
	return nil
}

// Shutdown submits a shutdown job, waits for it and reloads the snapshot.
func (m *Machine) Shutdown(ctx context.Context) error {
	if err := status.TransitionToShuttingDown(m.node); err != nil {
		return err
	}
	log := m.logger()
	log.Info("shutting down")

	jobID, err := m.client.Shutdown(ctx, m.linode.ID)
	if err != nil {
		return m.fail(ctx, "shutdown", "ShutdownFailed",
			fmt.Errorf("failed to submit shutdown for linode %d: %w", m.linode.ID, err))
	}
	if err := m.waiter.WaitSuccess(ctx, m.linode.ID, "shutdown", jobID); err != nil {
		return m.fail(ctx, "shutdown", "ShutdownFailed", err)
	}
	if err := m.Reload(ctx); err != nil {
		return m.fail(ctx, "shutdown", "ReloadFailed", err)
	}

	if err := status.TransitionToShutdown(m.node); err != nil {
		return err
	}
	log.WithField("job_id", jobID).Info("shut down")
	m.emit(ctx, events.TypeShutdown, "shutdown", nil)
	return nil
}

// SubmitBoot submits a boot job for configID without waiting for it. The
// machine stays in the Booting phase.
func (m *Machine) SubmitBoot(ctx context.Context, configID provider.ConfigID) (provider.JobID, error) {
	if err := status.TransitionToBooting(m.node); err != nil {
		return 0, err
	}
	m.logger().WithField("config_id", configID).Info("booting")

	jobID, err := m.client.Boot(ctx, m.linode.ID, configID)
	if err != nil {
		return 0, m.fail(ctx, "boot", "BootFailed",
			fmt.Errorf("failed to submit boot for linode %d: %w", m.linode.ID, err))
	}
	return jobID, nil
}

// Boot boots configID, waits for the job and reloads the snapshot.
func (m *Machine) Boot(ctx context.Context, configID provider.ConfigID) error {
	jobID, err := m.SubmitBoot(ctx, configID)
	if err != nil {
		return err
	}
	if err := m.waiter.WaitSuccess(ctx, m.linode.ID, "boot", jobID); err != nil {
		return m.fail(ctx, "boot", "BootFailed", err)
	}
	if err := m.Reload(ctx); err != nil {
		return m.fail(ctx, "boot", "ReloadFailed", err)
	}

	if err := status.TransitionToBooted(m.node); err != nil {
		return err
	}
	m.logger().WithFields(logrus.Fields{"job_id": jobID, "config_id": configID}).Info("booted")
	m.emit(ctx, events.TypeBoot, "boot", nil)
	return nil
}

func (m *Machine) setSnapshot(l provider.Linode) {
	m.linode = l
}

// observe copies the provider's view of the linode into the node status.
func (m *Machine) observe() {
	if m.node == nil {
		return
	}
	m.node.Status.LinodeID = int(m.linode.ID)
	m.node.Status.DisplayGroup = m.linode.DisplayGroup
	m.node.Status.PowerState = m.linode.Status.String()
}

func (m *Machine) logger() logrus.FieldLogger {
	return m.log.WithFields(logrus.Fields{
		"linode_id": m.linode.ID,
		"label":     m.linode.Label,
	})
}

// fail moves the machine to Failed, publishes a failed event and returns
// err unchanged.
func (m *Machine) fail(ctx context.Context, step, reason string, err error) error {
	status.TransitionToFailed(m.node, reason, err.Error())
	m.logger().WithFields(logrus.Fields{"step": step, "err": err}).Error("step failed")
	m.emit(ctx, events.TypeFailed, step, err)
	return err
}

func (m *Machine) emit(ctx context.Context, eventType, step string, err error) {
	e := events.Event{
		Type:      eventType,
		RunID:     m.runID,
		LinodeID:  int(m.linode.ID),
		Label:     m.linode.Label,
		Step:      step,
		Success:   err == nil,
		Timestamp: m.now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	events.Emit(ctx, m.events, m.log, e)
}

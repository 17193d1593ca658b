package machine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/catalog"
	"github.com/jbweber/linode-utils/internal/disk"
	"github.com/jbweber/linode-utils/internal/events"
	"github.com/jbweber/linode-utils/internal/job"
	"github.com/jbweber/linode-utils/internal/naming"
	"github.com/jbweber/linode-utils/internal/provider"
	"github.com/jbweber/linode-utils/internal/status"
)

// ErrNoBootConfig is returned when a linode has no boot config to boot.
var ErrNoBootConfig = errors.New("no boot config")

// ProvisionSpec describes the disk and boot layout Provision builds.
type ProvisionSpec struct {
	Distribution  catalog.Selector
	Kernel        catalog.Selector
	StackScriptID provider.StackScriptID

	// RootDiskSizeMB is a size in MB or disk.SizeRemaining. Zero means
	// disk.SizeRemaining.
	RootDiskSizeMB int

	// SwapSizeMB is used when the linode has no swap disk yet.
	SwapSizeMB int

	RootPass   string
	RootSSHKey string

	UDFResponses map[string]any
	Extra        map[string]any

	// Boot boots the new config and waits for it.
	Boot bool
}

// ProvisionResult names what Provision created or reused.
type ProvisionResult struct {
	RootDiskID provider.DiskID
	SwapDiskID provider.DiskID
	ConfigID   provider.ConfigID
}

// SpecFromNode builds a ProvisionSpec from a defaulted Node document.
func SpecFromNode(n *v1alpha1.Node) (ProvisionSpec, error) {
	dist, err := catalog.ParseSelector(n.Spec.Distribution)
	if err != nil {
		return ProvisionSpec{}, fmt.Errorf("invalid distribution: %w", err)
	}
	kernel, err := catalog.ParseSelector(n.GetKernel())
	if err != nil {
		return ProvisionSpec{}, fmt.Errorf("invalid kernel: %w", err)
	}

	spec := ProvisionSpec{
		Distribution:   dist,
		Kernel:         kernel,
		StackScriptID:  provider.StackScriptID(n.Spec.StackScriptID),
		RootDiskSizeMB: n.Spec.RootDiskSizeMB,
		SwapSizeMB:     n.GetSwapSizeMB(),
		RootPass:       n.Spec.RootPassword,
		Boot:           n.ShouldBoot(),
	}
	if len(n.Spec.StackScriptData) > 0 {
		spec.UDFResponses = make(map[string]any, len(n.Spec.StackScriptData))
		for k, v := range n.Spec.StackScriptData {
			spec.UDFResponses[k] = v
		}
	}
	if len(n.Spec.Params) > 0 {
		spec.Extra = make(map[string]any, len(n.Spec.Params))
		for k, v := range n.Spec.Params {
			spec.Extra[k] = v
		}
	}
	return spec, nil
}

// Deprovision shuts the linode down, deletes its boot configs and deletes
// its writable non-swap disks. It stops at the first failing step.
func Deprovision(ctx context.Context, m *Machine) error {
	log := m.logger()
	log.Info("deprovisioning")

	if err := m.Shutdown(ctx); err != nil {
		return err
	}

	deleted, err := m.Configs().DeleteAll(ctx)
	if err != nil {
		status.MarkStepFailed(m.node, v1alpha1.ConditionBootConfigured, "ConfigDeleteFailed", err)
		return m.fail(ctx, "delete configs", "ConfigDeleteFailed", err)
	}
	status.MarkBootConfigsRemoved(m.node)
	log.WithField("count", deleted).Info("boot configs deleted")
	m.emit(ctx, events.TypeConfigsDeleted, "delete configs", nil)

	ok, err := m.Disks().DeleteNonEssential(ctx)
	if err == nil && !ok {
		err = fmt.Errorf("failed to delete disks on linode %d: %w", m.ID(), job.ErrJobFailed)
	}
	if err != nil {
		status.MarkStepFailed(m.node, v1alpha1.ConditionDisksProvisioned, "DiskDeleteFailed", err)
		return m.fail(ctx, "delete disks", "DiskDeleteFailed", err)
	}
	status.MarkDisksRemoved(m.node)
	m.emit(ctx, events.TypeDisksDeleted, "delete disks", nil)

	log.Info("deprovisioned")
	return nil
}

// Provision lays out a swap disk and a root disk built from a template,
// creates a boot config referencing them and optionally boots it. A running
// linode is shut down first. Existing swap disks are reused.
func Provision(ctx context.Context, m *Machine, spec ProvisionSpec) (ProvisionResult, error) {
	var result ProvisionResult
	log := m.logger()
	log.Info("provisioning")

	if m.Linode().Status == provider.StatusRunning {
		if err := m.Shutdown(ctx); err != nil {
			return result, err
		}
	}

	disks := m.Disks()
	existing, err := disks.List(ctx)
	if err != nil {
		return result, m.fail(ctx, "list disks", "DiskListFailed", err)
	}
	for _, d := range existing {
		if d.IsSwap() {
			result.SwapDiskID = d.ID
			break
		}
	}
	if result.SwapDiskID == 0 {
		swapID, err := disks.CreateSwap(ctx, naming.SwapDiskLabel(m.Linode().Label), spec.SwapSizeMB)
		if err != nil {
			status.MarkStepFailed(m.node, v1alpha1.ConditionDisksProvisioned, "SwapCreateFailed", err)
			return result, m.fail(ctx, "create swap disk", "SwapCreateFailed", err)
		}
		result.SwapDiskID = swapID
	} else {
		log.WithField("disk_id", result.SwapDiskID).Info("reusing swap disk")
	}

	size := spec.RootDiskSizeMB
	if size == 0 {
		size = disk.SizeRemaining
	}
	rootID, err := disks.CreateFromTemplate(ctx, m.Linode(), disk.TemplateOptions{
		Size:          size,
		Distribution:  spec.Distribution,
		StackScriptID: spec.StackScriptID,
		RootPass:      spec.RootPass,
		RootSSHKey:    spec.RootSSHKey,
		UDFResponses:  spec.UDFResponses,
		Extra:         spec.Extra,
	})
	if err != nil {
		status.MarkStepFailed(m.node, v1alpha1.ConditionDisksProvisioned, "RootCreateFailed", err)
		return result, m.fail(ctx, "create root disk", "RootCreateFailed", err)
	}
	result.RootDiskID = rootID
	status.MarkDisksProvisioned(m.node, int(rootID), int(result.SwapDiskID))
	m.emit(ctx, events.TypeDiskCreated, "create root disk", nil)

	configID, err := m.Configs().CreateBootConfig(ctx, spec.Kernel, rootID)
	if err != nil {
		status.MarkStepFailed(m.node, v1alpha1.ConditionBootConfigured, "ConfigCreateFailed", err)
		return result, m.fail(ctx, "create config", "ConfigCreateFailed", err)
	}
	result.ConfigID = configID
	status.MarkBootConfigured(m.node, int(configID))
	m.emit(ctx, events.TypeConfigCreated, "create config", nil)

	if spec.Boot {
		if err := m.Boot(ctx, configID); err != nil {
			return result, err
		}
	}

	log.WithFields(logrus.Fields{
		"root_disk_id": result.RootDiskID,
		"swap_disk_id": result.SwapDiskID,
		"config_id":    result.ConfigID,
	}).Info("provisioned")
	return result, nil
}

// BootFirstConfig boots the config labelled configLabel, or the first config
// when configLabel is empty. With wait false the boot job is submitted and
// its ID returned without waiting.
func BootFirstConfig(ctx context.Context, m *Machine, configLabel string, wait bool) (provider.ConfigID, provider.JobID, error) {
	configs, err := m.Configs().List(ctx)
	if err != nil {
		return 0, 0, err
	}

	var chosen *provider.Config
	for i := range configs {
		if configLabel == "" || configs[i].Label == configLabel {
			chosen = &configs[i]
			break
		}
	}
	if chosen == nil {
		if configLabel != "" {
			return 0, 0, fmt.Errorf("%w: linode %d has no config labelled %q", ErrNoBootConfig, m.ID(), configLabel)
		}
		return 0, 0, fmt.Errorf("%w: linode %d has no configs", ErrNoBootConfig, m.ID())
	}

	if !wait {
		jobID, err := m.SubmitBoot(ctx, chosen.ID)
		return chosen.ID, jobID, err
	}
	if err := m.Boot(ctx, chosen.ID); err != nil {
		return chosen.ID, 0, err
	}
	return chosen.ID, 0, nil
}

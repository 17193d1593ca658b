// Package bootconfig manages the boot configurations of a linode.
//
// Creating a config is synchronous at the provider: there is no job to wait
// for. The disks it references must already exist, so callers create them
// through package disk first.
package bootconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/linode-utils/internal/catalog"
	"github.com/jbweber/linode-utils/internal/logging"
	"github.com/jbweber/linode-utils/internal/naming"
	"github.com/jbweber/linode-utils/internal/provider"
)

const (
	rootSlot = 0
	swapSlot = 1
)

// ErrNoSwapDisk is returned when a boot config is requested for a linode
// without a swap disk.
var ErrNoSwapDisk = errors.New("no swap disk")

// API is the subset of the provider client used for boot configs.
type API interface {
	ListKernels(ctx context.Context) ([]provider.Kernel, error)
	CreateConfig(ctx context.Context, id provider.LinodeID, spec provider.ConfigSpec) (provider.ConfigID, error)
	ListConfigs(ctx context.Context, id provider.LinodeID) ([]provider.Config, error)
	DeleteConfig(ctx context.Context, id provider.LinodeID, configID provider.ConfigID) error
}

// DiskLister lists the disks of the bound linode. Satisfied by *disk.Ops.
type DiskLister interface {
	List(ctx context.Context) ([]provider.Disk, error)
}

// Ops runs boot config operations against one linode.
type Ops struct {
	Client   API
	Disks    DiskLister
	LinodeID provider.LinodeID
	Log      logrus.FieldLogger

	// Now defaults to time.Now.
	Now func() time.Time

	// RunID is recorded in the comment of created configs.
	RunID string
}

func (o *Ops) log() logrus.FieldLogger {
	return logging.OrDiscard(o.Log).WithField("linode_id", o.LinodeID)
}

func (o *Ops) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// List returns the linode's boot configs in provider order.
func (o *Ops) List(ctx context.Context) ([]provider.Config, error) {
	configs, err := o.Client.ListConfigs(ctx, o.LinodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list configs for linode %d: %w", o.LinodeID, err)
	}
	return configs, nil
}

// CreateBootConfig creates a config booting kernel with rootDiskID in slot 0
// and the linode's swap disk in slot 1. If the linode has several swap disks
// the first one listed is used.
func (o *Ops) CreateBootConfig(ctx context.Context, kernel catalog.Selector, rootDiskID provider.DiskID) (provider.ConfigID, error) {
	log := o.log()

	if rootDiskID <= 0 {
		return 0, fmt.Errorf("invalid root disk id %d", rootDiskID)
	}

	k, err := catalog.ResolveKernel(ctx, o.Client, kernel)
	if err != nil {
		return 0, err
	}

	disks, err := o.Disks.List(ctx)
	if err != nil {
		return 0, err
	}
	var swaps []provider.Disk
	for _, d := range disks {
		if d.IsSwap() {
			swaps = append(swaps, d)
		}
	}
	if len(swaps) == 0 {
		return 0, fmt.Errorf("%w on linode %d", ErrNoSwapDisk, o.LinodeID)
	}
	if len(swaps) > 1 {
		ids := make([]provider.DiskID, len(swaps))
		for i, d := range swaps {
			ids[i] = d.ID
		}
		log.WithFields(logrus.Fields{
			"swap_disks": ids,
			"using":      swaps[0].ID,
		}).Warn("multiple swap disks found, using the first")
	}

	now := o.now()
	spec := provider.ConfigSpec{
		KernelID: k.ID,
		Label:    naming.BootConfigLabel(now),
		Comments: naming.BootConfigComment(now, o.RunID),
	}
	spec.DiskList[rootSlot] = rootDiskID
	spec.DiskList[swapSlot] = swaps[0].ID
	spec.RootDeviceNum = rootSlot + 1

	configID, err := o.Client.CreateConfig(ctx, o.LinodeID, spec)
	if err != nil {
		return 0, fmt.Errorf("failed to create boot config on linode %d: %w", o.LinodeID, err)
	}

	log.WithFields(logrus.Fields{
		"config_id": configID,
		"label":     spec.Label,
		"kernel":    k.Label,
	}).Info("boot config created")
	return configID, nil
}

// DeleteAll removes every boot config of the linode and returns how many
// were deleted. It stops at the first failure.
func (o *Ops) DeleteAll(ctx context.Context) (int, error) {
	configs, err := o.List(ctx)
	if err != nil {
		return 0, err
	}
	for i, c := range configs {
		o.log().WithFields(logrus.Fields{"config_id": c.ID, "label": c.Label}).Info("deleting boot config")
		if err := o.Client.DeleteConfig(ctx, o.LinodeID, c.ID); err != nil {
			return i, fmt.Errorf("failed to delete config %d on linode %d: %w", c.ID, o.LinodeID, err)
		}
	}
	return len(configs), nil
}

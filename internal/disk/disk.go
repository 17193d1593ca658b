// Package disk sequences the disk jobs of a single linode: listing, deleting
// and creating disks from distribution templates.
//
// Every state-changing call submits a provider job and blocks on the job
// waiter before returning.
package disk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jbweber/linode-utils/internal/catalog"
	"github.com/jbweber/linode-utils/internal/job"
	"github.com/jbweber/linode-utils/internal/logging"
	"github.com/jbweber/linode-utils/internal/naming"
	"github.com/jbweber/linode-utils/internal/provider"
)

const (
	// SizeRemaining requests all capacity not already used by other disks.
	SizeRemaining = -1

	// rootPassLength is the length of generated root passwords.
	rootPassLength = 20
)

var (
	// ErrMissingOption is returned when a required template option is unset.
	ErrMissingOption = errors.New("missing required option")

	// ErrNoSpace is returned when no capacity is left for a new disk.
	ErrNoSpace = errors.New("no space left on linode")
)

// API is the subset of the provider client used for disk operations.
type API interface {
	ListDisks(ctx context.Context, id provider.LinodeID) ([]provider.Disk, error)
	DeleteDisk(ctx context.Context, id provider.LinodeID, diskID provider.DiskID) (provider.JobID, error)
	CreateDisk(ctx context.Context, id provider.LinodeID, spec provider.DiskSpec) (provider.DiskID, provider.JobID, error)
	CreateDiskFromStackScript(ctx context.Context, id provider.LinodeID, spec provider.StackScriptDiskSpec) (provider.DiskID, provider.JobID, error)
	ListDistributions(ctx context.Context) ([]provider.Distribution, error)
}

// TemplateOptions describes a disk created from a distribution template and
// a StackScript.
type TemplateOptions struct {
	// Size in MB, or SizeRemaining. Required.
	Size int

	// Distribution selects the base image. Required.
	Distribution catalog.Selector

	// StackScriptID is the script run on first boot. Required.
	StackScriptID provider.StackScriptID

	// Label defaults to the linode's root disk label.
	Label string

	// RootPass is generated when empty.
	RootPass string

	RootSSHKey string

	// UDFResponses are the StackScript's user-defined field answers,
	// forwarded verbatim.
	UDFResponses map[string]any

	// Extra holds provider-specific parameters. Nil values and empty strings
	// are dropped before submission.
	Extra map[string]any
}

// Ops runs disk operations against one linode.
type Ops struct {
	Client   API
	Waiter   *job.Waiter
	LinodeID provider.LinodeID
	Log      logrus.FieldLogger
}

// NewOps binds disk operations to a linode.
func NewOps(client API, waiter *job.Waiter, id provider.LinodeID, log logrus.FieldLogger) *Ops {
	return &Ops{Client: client, Waiter: waiter, LinodeID: id, Log: log}
}

func (o *Ops) log() logrus.FieldLogger {
	return logging.OrDiscard(o.Log).WithField("linode_id", o.LinodeID)
}

// List returns the linode's disks in provider order.
func (o *Ops) List(ctx context.Context) ([]provider.Disk, error) {
	disks, err := o.Client.ListDisks(ctx, o.LinodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list disks for linode %d: %w", o.LinodeID, err)
	}
	return disks, nil
}

// Delete submits one delete job per disk, in order, then waits for all of
// them jointly. It reports whether every deletion succeeded.
//
// Deletion is not transactional. If a submission fails, the error is
// returned and deletions submitted before it keep running.
func (o *Ops) Delete(ctx context.Context, disks []provider.Disk) (bool, error) {
	log := o.log()
	jobIDs := make([]provider.JobID, 0, len(disks))

	for _, d := range disks {
		log.WithFields(logrus.Fields{"disk_id": d.ID, "label": d.Label}).Info("deleting disk")
		jobID, err := o.Client.DeleteDisk(ctx, o.LinodeID, d.ID)
		if err != nil {
			if len(jobIDs) > 0 {
				log.WithFields(logrus.Fields{
					"job_ids": jobIDs,
					"err":     err,
				}).Warn("disk deletion aborted, earlier deletions are still in flight")
			}
			return false, fmt.Errorf("failed to delete disk %d on linode %d (in flight: %v): %w", d.ID, o.LinodeID, jobIDs, err)
		}
		jobIDs = append(jobIDs, jobID)
	}

	return o.Waiter.Wait(ctx, o.LinodeID, jobIDs, func(pending []provider.JobID) {
		log.WithField("job_ids", pending).Debug("waiting for disk deletion")
	})
}

// NonEssential returns the disks that are neither read-only nor swap, in
// input order.
func NonEssential(disks []provider.Disk) []provider.Disk {
	var out []provider.Disk
	for _, d := range disks {
		if d.ReadOnly || d.IsSwap() {
			continue
		}
		out = append(out, d)
	}
	return out
}

// DeleteNonEssential deletes every writable, non-swap disk of the linode.
func (o *Ops) DeleteNonEssential(ctx context.Context) (bool, error) {
	disks, err := o.List(ctx)
	if err != nil {
		return false, err
	}
	targets := NonEssential(disks)
	o.log().WithFields(logrus.Fields{
		"total":     len(disks),
		"deletable": len(targets),
	}).Info("deleting non-essential disks")
	return o.Delete(ctx, targets)
}

// UsedSpace returns the sum of all disk sizes in MB.
func (o *Ops) UsedSpace(ctx context.Context) (int, error) {
	disks, err := o.List(ctx)
	if err != nil {
		return 0, err
	}
	used := 0
	for _, d := range disks {
		used += d.Size
	}
	return used, nil
}

// ResolveSize turns a requested size into a concrete one. SizeRemaining
// becomes the linode's total capacity minus the space already used.
func (o *Ops) ResolveSize(ctx context.Context, linode provider.Linode, size int) (int, error) {
	if size != SizeRemaining {
		if size <= 0 {
			return 0, fmt.Errorf("invalid disk size %d", size)
		}
		return size, nil
	}
	used, err := o.UsedSpace(ctx)
	if err != nil {
		return 0, err
	}
	remaining := linode.TotalHD - used
	if remaining <= 0 {
		return 0, fmt.Errorf("%w: %d MB total, %d MB used", ErrNoSpace, linode.TotalHD, used)
	}
	return remaining, nil
}

// CreateFromTemplate creates a disk from a distribution and StackScript and
// waits for the creation job. The new disk ID is returned only when the job
// succeeded.
func (o *Ops) CreateFromTemplate(ctx context.Context, linode provider.Linode, opts TemplateOptions) (provider.DiskID, error) {
	if err := opts.validate(); err != nil {
		return 0, err
	}

	rootPass := opts.RootPass
	if rootPass == "" {
		generated, err := GeneratePassword()
		if err != nil {
			return 0, err
		}
		rootPass = generated
	}

	dist, err := catalog.ResolveDistribution(ctx, o.Client, opts.Distribution)
	if err != nil {
		return 0, err
	}

	size, err := o.ResolveSize(ctx, linode, opts.Size)
	if err != nil {
		return 0, err
	}

	label := opts.Label
	if label == "" {
		label = naming.RootDiskLabel(linode.Label)
	}

	spec := provider.StackScriptDiskSpec{
		StackScriptID:  opts.StackScriptID,
		DistributionID: dist.ID,
		Label:          label,
		Size:           size,
		RootPass:       rootPass,
		RootSSHKey:     opts.RootSSHKey,
		UDFResponses:   opts.UDFResponses,
		Params:         CleanParams(opts.Extra),
	}

	log := o.log().WithFields(logrus.Fields{
		"label":        label,
		"distribution": dist.Label,
		"size":         size,
	})
	log.Info("creating disk from template")

	diskID, jobID, err := o.Client.CreateDiskFromStackScript(ctx, o.LinodeID, spec)
	if err != nil {
		return 0, fmt.Errorf("failed to create disk %q on linode %d: %w", label, o.LinodeID, err)
	}
	if err := o.Waiter.WaitSuccess(ctx, o.LinodeID, "create disk "+label, jobID); err != nil {
		return 0, err
	}

	log.WithField("disk_id", diskID).Info("disk created")
	return diskID, nil
}

// CreateSwap creates a swap disk of sizeMB and waits for it.
func (o *Ops) CreateSwap(ctx context.Context, label string, sizeMB int) (provider.DiskID, error) {
	if sizeMB <= 0 {
		return 0, fmt.Errorf("invalid swap size %d", sizeMB)
	}

	o.log().WithFields(logrus.Fields{"label": label, "size": sizeMB}).Info("creating swap disk")
	diskID, jobID, err := o.Client.CreateDisk(ctx, o.LinodeID, provider.DiskSpec{
		Label: label,
		Type:  provider.DiskTypeSwap,
		Size:  sizeMB,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create swap disk on linode %d: %w", o.LinodeID, err)
	}
	if err := o.Waiter.WaitSuccess(ctx, o.LinodeID, "create swap disk", jobID); err != nil {
		return 0, err
	}
	return diskID, nil
}

func (opts TemplateOptions) validate() error {
	switch {
	case opts.Size == 0:
		return fmt.Errorf("%w: size", ErrMissingOption)
	case opts.Distribution.IsZero():
		return fmt.Errorf("%w: distribution", ErrMissingOption)
	case opts.StackScriptID == 0:
		return fmt.Errorf("%w: stackscript id", ErrMissingOption)
	}
	return nil
}

// CleanParams copies params without nil values and empty strings. Nothing
// else is inspected.
func CleanParams(params map[string]any) map[string]any {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// GeneratePassword returns a random hex password of 20 characters.
func GeneratePassword() (string, error) {
	buf := make([]byte, rootPassLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate root password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

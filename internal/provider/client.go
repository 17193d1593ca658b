package provider

import "context"

// Client is the full surface of the provider API used by linode-utils.
//
// In production this is satisfied by *linode.Client. In tests it is
// satisfied by *FakeClient. The orchestration packages each declare the
// narrower subset they need, so most code never depends on Client directly.
type Client interface {
	// ListLinodes returns all linodes, or only the one with the given ID
	// when id is non-zero.
	ListLinodes(ctx context.Context, id LinodeID) ([]Linode, error)

	// Boot submits a boot job. A zero configID lets the provider pick the
	// last booted configuration.
	Boot(ctx context.Context, id LinodeID, configID ConfigID) (JobID, error)

	// Shutdown submits a shutdown job.
	Shutdown(ctx context.Context, id LinodeID) (JobID, error)

	// ListDisks lists the disks of a linode in provider order.
	ListDisks(ctx context.Context, id LinodeID) ([]Disk, error)

	// DeleteDisk submits a disk deletion job.
	DeleteDisk(ctx context.Context, id LinodeID, diskID DiskID) (JobID, error)

	// CreateDisk submits a plain disk creation job.
	CreateDisk(ctx context.Context, id LinodeID, spec DiskSpec) (DiskID, JobID, error)

	// CreateDiskFromStackScript submits a disk creation job that deploys a
	// distribution and runs a StackScript on it.
	CreateDiskFromStackScript(ctx context.Context, id LinodeID, spec StackScriptDiskSpec) (DiskID, JobID, error)

	// ListDistributions lists the available template images.
	ListDistributions(ctx context.Context) ([]Distribution, error)

	// ListKernels lists the available kernels.
	ListKernels(ctx context.Context) ([]Kernel, error)

	// CreateConfig creates a boot configuration. This call is synchronous.
	CreateConfig(ctx context.Context, id LinodeID, spec ConfigSpec) (ConfigID, error)

	// ListConfigs lists the boot configurations of a linode.
	ListConfigs(ctx context.Context, id LinodeID) ([]Config, error)

	// DeleteConfig deletes a boot configuration. This call is synchronous.
	DeleteConfig(ctx context.Context, id LinodeID, configID ConfigID) error

	// ListJobs lists the jobs of a linode. The provider may prune finished
	// jobs from this listing.
	ListJobs(ctx context.Context, id LinodeID) ([]Job, error)
}

package machine

import (
	"context"

	"github.com/jbweber/linode-utils/internal/bootconfig"
	"github.com/jbweber/linode-utils/internal/disk"
	"github.com/jbweber/linode-utils/internal/locate"
	"github.com/jbweber/linode-utils/internal/provider"
)

// API is the provider surface a Machine needs. It is the union of what the
// packages it drives consume.
//
// In production, this is satisfied by *linode.Client.
// In tests, this is satisfied by *provider.FakeClient.
type API interface {
	locate.Lister
	disk.API
	bootconfig.API

	// Boot submits a boot job for configID.
	Boot(ctx context.Context, id provider.LinodeID, configID provider.ConfigID) (provider.JobID, error)

	// Shutdown submits a shutdown job.
	Shutdown(ctx context.Context, id provider.LinodeID) (provider.JobID, error)

	// ListJobs lists the jobs of a linode.
	ListJobs(ctx context.Context, id provider.LinodeID) ([]provider.Job, error)
}

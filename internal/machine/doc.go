// Package machine provides high-level lifecycle operations on one linode.
//
// A Machine is constructed from a linode label and refuses to exist for a
// linode outside the configured safety group. Every state-changing method
// submits a provider job, waits for it, and reloads the linode snapshot on
// success.
//
// The workflows built on top of a Machine are:
//   - Provision: lay out swap and root disks, create a boot config, boot it
//   - Deprovision: shut down, delete boot configs and writable disks
//   - BootFirstConfig: boot an existing config
//
// Error Handling:
//
// Workflows stop at the first failing step and do not roll back. The error
// names the linode, the step and, for job failures, the job IDs. The
// machine's phase becomes Failed and a failed event is published.
//
// Context Support:
//
// All operations accept a context.Context. Cancellation or an expired
// deadline interrupts the job wait; jobs already submitted keep running at
// the provider.
package machine

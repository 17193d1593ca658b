// Package provider defines the resource model of the job-based VM provider
// API and the client interface the orchestration packages consume.
//
// Every state-changing call on the provider returns immediately with a JobID.
// Callers poll ListJobs until the job reports a finish time (see package job).
package provider

import "time"

// Identifier types. The provider assigns all of them; zero is never a valid
// identifier and is used to mean "none" (for example an empty disk slot).
type (
	LinodeID       int
	JobID          int
	DiskID         int
	ConfigID       int
	KernelID       int
	DistributionID int
	StackScriptID  int
)

// MaxDeviceSlots is the number of disk slots in a boot configuration.
const MaxDeviceSlots = 9

// LinodeStatus is the lifecycle state reported by the provider.
type LinodeStatus int

const (
	// StatusBeingCreated is reported while the provider is still allocating
	// the linode.
	StatusBeingCreated LinodeStatus = -1
	// StatusBrandNew is a linode that has never been booted.
	StatusBrandNew LinodeStatus = 0
	// StatusRunning is a booted linode.
	StatusRunning LinodeStatus = 1
	// StatusPoweredOff is a linode that has been shut down.
	StatusPoweredOff LinodeStatus = 2
)

// String returns a human-readable name for the status.
func (s LinodeStatus) String() string {
	switch s {
	case StatusBeingCreated:
		return "being created"
	case StatusBrandNew:
		return "brand new"
	case StatusRunning:
		return "running"
	case StatusPoweredOff:
		return "powered off"
	default:
		return "unknown"
	}
}

// Linode is a snapshot of one managed virtual machine. Snapshots are values:
// refreshing a resource replaces the whole snapshot.
type Linode struct {
	ID           LinodeID     `json:"id" yaml:"id"`
	Label        string       `json:"label" yaml:"label"`
	DisplayGroup string       `json:"displayGroup" yaml:"displayGroup"`
	Status       LinodeStatus `json:"status" yaml:"status"`
	TotalHD      int          `json:"totalHD" yaml:"totalHD"` // MB
	TotalRAM     int          `json:"totalRAM" yaml:"totalRAM"`
	DatacenterID int          `json:"datacenterID" yaml:"datacenterID"`
}

// Job is an asynchronous unit of work tracked by the provider.
type Job struct {
	ID       JobID
	LinodeID LinodeID
	Action   string
	Label    string

	// HostFinishDT is nil while the job is still running.
	HostFinishDT *time.Time
	// HostSuccess is only meaningful once HostFinishDT is set.
	HostSuccess bool
	HostMessage string
}

// Done reports whether the job has a completion timestamp.
func (j Job) Done() bool {
	return j.HostFinishDT != nil
}

// DiskType is the filesystem type of a disk.
type DiskType string

const (
	DiskTypeSwap DiskType = "swap"
	DiskTypeExt3 DiskType = "ext3"
	DiskTypeExt4 DiskType = "ext4"
	DiskTypeRaw  DiskType = "raw"
)

// Disk is a disk image attached to a linode.
type Disk struct {
	ID       DiskID   `json:"id" yaml:"id"`
	LinodeID LinodeID `json:"linodeID" yaml:"linodeID"`
	Label    string   `json:"label" yaml:"label"`
	Size     int      `json:"size" yaml:"size"` // MB
	Type     DiskType `json:"type" yaml:"type"`
	ReadOnly bool     `json:"readOnly" yaml:"readOnly"`
}

// IsSwap reports whether the disk is a swap disk.
func (d Disk) IsSwap() bool {
	return d.Type == DiskTypeSwap
}

// Config is a boot configuration: a kernel plus disk slot assignments.
type Config struct {
	ID            ConfigID               `json:"id" yaml:"id"`
	LinodeID      LinodeID               `json:"linodeID" yaml:"linodeID"`
	Label         string                 `json:"label" yaml:"label"`
	Comments      string                 `json:"comments,omitempty" yaml:"comments,omitempty"`
	KernelID      KernelID               `json:"kernelID" yaml:"kernelID"`
	DiskList      [MaxDeviceSlots]DiskID `json:"diskList" yaml:"diskList"`
	RootDeviceNum int                    `json:"rootDeviceNum" yaml:"rootDeviceNum"`
}

// Distribution is a template image a disk can be created from.
type Distribution struct {
	ID           DistributionID
	Label        string
	Is64Bit      bool
	MinImageSize int
}

// Kernel is a kernel a boot configuration can reference.
type Kernel struct {
	ID      KernelID
	Label   string
	IsXen   bool
	IsKVM   bool
	IsPVOPS bool
}

// DiskSpec describes a plain disk to create (used for swap disks).
type DiskSpec struct {
	Label string
	Type  DiskType
	Size  int
}

// StackScriptDiskSpec describes a disk created from a distribution and
// initialized by a StackScript.
type StackScriptDiskSpec struct {
	StackScriptID  StackScriptID
	DistributionID DistributionID
	Label          string
	Size           int
	RootPass       string
	RootSSHKey     string

	// UDFResponses are the StackScript's user-defined fields, sent as a JSON
	// object.
	UDFResponses map[string]any

	// Params are additional provider-specific request parameters, forwarded
	// verbatim.
	Params map[string]any
}

// ConfigSpec describes a boot configuration to create.
type ConfigSpec struct {
	KernelID      KernelID
	Label         string
	Comments      string
	DiskList      [MaxDeviceSlots]DiskID
	RootDeviceNum int
}

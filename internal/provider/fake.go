package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Fake client method names, used as keys for FakeClient.Errors and in the
// call log.
const (
	MethodListLinodes               = "ListLinodes"
	MethodBoot                      = "Boot"
	MethodShutdown                  = "Shutdown"
	MethodListDisks                 = "ListDisks"
	MethodDeleteDisk                = "DeleteDisk"
	MethodCreateDisk                = "CreateDisk"
	MethodCreateDiskFromStackScript = "CreateDiskFromStackScript"
	MethodListDistributions         = "ListDistributions"
	MethodListKernels               = "ListKernels"
	MethodCreateConfig              = "CreateConfig"
	MethodListConfigs               = "ListConfigs"
	MethodDeleteConfig              = "DeleteConfig"
	MethodListJobs                  = "ListJobs"
)

var mutatingMethods = map[string]bool{
	MethodBoot:                      true,
	MethodShutdown:                  true,
	MethodDeleteDisk:                true,
	MethodCreateDisk:                true,
	MethodCreateDiskFromStackScript: true,
	MethodCreateConfig:              true,
	MethodDeleteConfig:              true,
}

// FakeClient is an in-memory Client suitable for tests.
//
// Jobs submitted to the fake finish after JobPolls calls to ListJobs for the
// owning linode (zero means they are reported finished on the first listing).
// A job's side effect (disk created, linode booted, ...) is applied when it
// finishes successfully.
type FakeClient struct {
	mu sync.Mutex

	// JobPolls is how many ListJobs calls a job stays pending for.
	JobPolls int

	// FailActions makes jobs with the given action finish unsuccessfully.
	FailActions map[string]bool

	// PruneFinished drops finished jobs from ListJobs results, the way the
	// provider may prune old jobs.
	PruneFinished bool

	// Errors makes the named method return the given error.
	Errors map[string]error

	// DeleteDiskErrors makes DeleteDisk fail for specific disks.
	DeleteDiskErrors map[DiskID]error

	Distributions []Distribution
	Kernels       []Kernel

	// Request tracking
	Calls               []string
	DiskRequests        []DiskSpec
	StackScriptRequests []StackScriptDiskSpec
	ConfigRequests      []ConfigSpec
	BootRequests        []ConfigID

	linodes map[LinodeID]Linode
	disks   map[LinodeID][]Disk
	configs map[LinodeID][]Config
	jobs    map[LinodeID][]*fakeJob
	counter int
	now     time.Time
}

type fakeJob struct {
	job       Job
	remaining int
	apply     func()
}

// NewFakeClient creates an empty fake provider.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		linodes: make(map[LinodeID]Linode),
		disks:   make(map[LinodeID][]Disk),
		configs: make(map[LinodeID][]Config),
		jobs:    make(map[LinodeID][]*fakeJob),
		now:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddLinode registers a linode with the fake.
func (f *FakeClient) AddLinode(l Linode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linodes[l.ID] = l
}

// AddDisk attaches a disk to a linode. A zero ID is assigned automatically.
func (f *FakeClient) AddDisk(d Disk) DiskID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == 0 {
		d.ID = DiskID(f.nextID())
	}
	f.disks[d.LinodeID] = append(f.disks[d.LinodeID], d)
	return d.ID
}

// AddConfig attaches a boot configuration to a linode. A zero ID is assigned
// automatically.
func (f *FakeClient) AddConfig(c Config) ConfigID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		c.ID = ConfigID(f.nextID())
	}
	f.configs[c.LinodeID] = append(f.configs[c.LinodeID], c)
	return c.ID
}

// Disks returns a copy of the disks currently attached to a linode.
func (f *FakeClient) Disks(id LinodeID) []Disk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Disk(nil), f.disks[id]...)
}

// Configs returns a copy of the boot configurations of a linode.
func (f *FakeClient) Configs(id LinodeID) []Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Config(nil), f.configs[id]...)
}

// Linode returns the current state of a linode.
func (f *FakeClient) Linode(id LinodeID) (Linode, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.linodes[id]
	return l, ok
}

// CallCount returns how many times the named method was called.
func (f *FakeClient) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// MutatingCalls returns how many state-changing calls were made.
func (f *FakeClient) MutatingCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if mutatingMethods[c] {
			n++
		}
	}
	return n
}

func (f *FakeClient) nextID() int {
	f.counter++
	return f.counter
}

// record logs the call and returns the injected error, if any. Must be
// called with f.mu held.
func (f *FakeClient) record(method string) error {
	f.Calls = append(f.Calls, method)
	if err, ok := f.Errors[method]; ok {
		return err
	}
	return nil
}

func (f *FakeClient) requireLinode(id LinodeID) error {
	if _, ok := f.linodes[id]; !ok {
		return fmt.Errorf("linode %d not found", id)
	}
	return nil
}

// submit creates a pending job. Must be called with f.mu held.
func (f *FakeClient) submit(id LinodeID, action, label string, apply func()) JobID {
	j := &fakeJob{
		job: Job{
			ID:       JobID(f.nextID()),
			LinodeID: id,
			Action:   action,
			Label:    label,
		},
		remaining: f.JobPolls,
		apply:     apply,
	}
	f.jobs[id] = append(f.jobs[id], j)
	return j.job.ID
}

func (f *FakeClient) ListLinodes(_ context.Context, id LinodeID) ([]Linode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodListLinodes); err != nil {
		return nil, err
	}

	var out []Linode
	for _, l := range f.linodes {
		if id == 0 || l.ID == id {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeClient) Boot(_ context.Context, id LinodeID, configID ConfigID) (JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodBoot); err != nil {
		return 0, err
	}
	if err := f.requireLinode(id); err != nil {
		return 0, err
	}
	f.BootRequests = append(f.BootRequests, configID)

	return f.submit(id, "linode.boot", "System Boot", func() {
		l := f.linodes[id]
		l.Status = StatusRunning
		f.linodes[id] = l
	}), nil
}

func (f *FakeClient) Shutdown(_ context.Context, id LinodeID) (JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodShutdown); err != nil {
		return 0, err
	}
	if err := f.requireLinode(id); err != nil {
		return 0, err
	}

	return f.submit(id, "linode.shutdown", "System Shutdown", func() {
		l := f.linodes[id]
		l.Status = StatusPoweredOff
		f.linodes[id] = l
	}), nil
}

func (f *FakeClient) ListDisks(_ context.Context, id LinodeID) ([]Disk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodListDisks); err != nil {
		return nil, err
	}
	return append([]Disk(nil), f.disks[id]...), nil
}

func (f *FakeClient) DeleteDisk(_ context.Context, id LinodeID, diskID DiskID) (JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodDeleteDisk); err != nil {
		return 0, err
	}
	if err, ok := f.DeleteDiskErrors[diskID]; ok {
		return 0, err
	}

	found := false
	for _, d := range f.disks[id] {
		if d.ID == diskID {
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("disk %d not found on linode %d", diskID, id)
	}

	return f.submit(id, "linode.disk.delete", fmt.Sprintf("Delete disk %d", diskID), func() {
		kept := f.disks[id][:0]
		for _, d := range f.disks[id] {
			if d.ID != diskID {
				kept = append(kept, d)
			}
		}
		f.disks[id] = kept
	}), nil
}

func (f *FakeClient) CreateDisk(_ context.Context, id LinodeID, spec DiskSpec) (DiskID, JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodCreateDisk); err != nil {
		return 0, 0, err
	}
	if err := f.requireLinode(id); err != nil {
		return 0, 0, err
	}
	f.DiskRequests = append(f.DiskRequests, spec)

	disk := Disk{
		ID:       DiskID(f.nextID()),
		LinodeID: id,
		Label:    spec.Label,
		Size:     spec.Size,
		Type:     spec.Type,
	}
	jobID := f.submit(id, "linode.disk.create", "Create disk "+spec.Label, func() {
		f.disks[id] = append(f.disks[id], disk)
	})
	return disk.ID, jobID, nil
}

func (f *FakeClient) CreateDiskFromStackScript(_ context.Context, id LinodeID, spec StackScriptDiskSpec) (DiskID, JobID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodCreateDiskFromStackScript); err != nil {
		return 0, 0, err
	}
	if err := f.requireLinode(id); err != nil {
		return 0, 0, err
	}
	f.StackScriptRequests = append(f.StackScriptRequests, spec)

	disk := Disk{
		ID:       DiskID(f.nextID()),
		LinodeID: id,
		Label:    spec.Label,
		Size:     spec.Size,
		Type:     DiskTypeExt4,
	}
	jobID := f.submit(id, "linode.disk.createfromstackscript", "Create disk "+spec.Label, func() {
		f.disks[id] = append(f.disks[id], disk)
	})
	return disk.ID, jobID, nil
}

func (f *FakeClient) ListDistributions(_ context.Context) ([]Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodListDistributions); err != nil {
		return nil, err
	}
	return append([]Distribution(nil), f.Distributions...), nil
}

func (f *FakeClient) ListKernels(_ context.Context) ([]Kernel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodListKernels); err != nil {
		return nil, err
	}
	return append([]Kernel(nil), f.Kernels...), nil
}

func (f *FakeClient) CreateConfig(_ context.Context, id LinodeID, spec ConfigSpec) (ConfigID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodCreateConfig); err != nil {
		return 0, err
	}
	if err := f.requireLinode(id); err != nil {
		return 0, err
	}
	f.ConfigRequests = append(f.ConfigRequests, spec)

	cfg := Config{
		ID:            ConfigID(f.nextID()),
		LinodeID:      id,
		Label:         spec.Label,
		Comments:      spec.Comments,
		KernelID:      spec.KernelID,
		DiskList:      spec.DiskList,
		RootDeviceNum: spec.RootDeviceNum,
	}
	f.configs[id] = append(f.configs[id], cfg)
	return cfg.ID, nil
}

func (f *FakeClient) ListConfigs(_ context.Context, id LinodeID) ([]Config, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodListConfigs); err != nil {
		return nil, err
	}
	return append([]Config(nil), f.configs[id]...), nil
}

func (f *FakeClient) DeleteConfig(_ context.Context, id LinodeID, configID ConfigID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodDeleteConfig); err != nil {
		return err
	}

	kept := f.configs[id][:0]
	found := false
	for _, c := range f.configs[id] {
		if c.ID == configID {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return fmt.Errorf("config %d not found on linode %d", configID, id)
	}
	f.configs[id] = kept
	return nil
}

// ListJobs advances every pending job of the linode by one poll and returns
// the listing.
func (f *FakeClient) ListJobs(_ context.Context, id LinodeID) ([]Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(MethodListJobs); err != nil {
		return nil, err
	}

	var out []Job
	for _, j := range f.jobs[id] {
		if !j.job.Done() {
			if j.remaining > 0 {
				j.remaining--
			} else {
				f.finish(j)
			}
		}
		if j.job.Done() && f.PruneFinished {
			continue
		}
		out = append(out, j.job)
	}
	return out, nil
}

// finish marks a job complete and applies its effect on success. Must be
// called with f.mu held.
func (f *FakeClient) finish(j *fakeJob) {
	f.now = f.now.Add(time.Second)
	finished := f.now
	j.job.HostFinishDT = &finished
	j.job.HostSuccess = !f.FailActions[j.job.Action]
	if j.job.HostSuccess {
		j.job.HostMessage = "ok"
		if j.apply != nil {
			j.apply()
		}
	} else {
		j.job.HostMessage = "job failed"
	}
}

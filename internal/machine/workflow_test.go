package machine

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/catalog"
	"github.com/jbweber/linode-utils/internal/events"
	"github.com/jbweber/linode-utils/internal/job"
	"github.com/jbweber/linode-utils/internal/provider"
	"github.com/jbweber/linode-utils/internal/status"
)

func addWeb1Disks(fake *provider.FakeClient) {
	for _, d := range []provider.Disk{
		{ID: 1, Label: "root", Type: provider.DiskTypeExt3, Size: 100},
		{ID: 2, Label: "swap", Type: provider.DiskTypeSwap, Size: 20},
		{ID: 3, Label: "template", Type: provider.DiskTypeExt3, Size: 50, ReadOnly: true},
	} {
		d.LinodeID = testLinode
		fake.AddDisk(d)
	}
}

func diskIDs(disks []provider.Disk) []provider.DiskID {
	ids := make([]provider.DiskID, len(disks))
	for i, d := range disks {
		ids[i] = d.ID
	}
	return ids
}

func withCatalog(fake *provider.FakeClient) *provider.FakeClient {
	fake.Distributions = []provider.Distribution{
		{ID: 77, Label: "Debian 6"},
		{ID: 78, Label: "Ubuntu 10.04 LTS"},
	}
	fake.Kernels = []provider.Kernel{
		{ID: 120, Label: "Latest 2.6 Paravirt (2.6.39-x86_64)"},
		{ID: 121, Label: "Latest 2.6 Paravirt (2.6.39)"},
	}
	return fake
}

func testSpec(t *testing.T) ProvisionSpec {
	t.Helper()
	kernel, err := catalog.ParseSelector(v1alpha1.DefaultKernel)
	if err != nil {
		t.Fatalf("ParseSelector() error = %v", err)
	}
	return ProvisionSpec{
		Distribution:  catalog.Exact("Debian 6"),
		Kernel:        kernel,
		StackScriptID: 5,
		SwapSizeMB:    256,
		RootPass:      "secret",
		Boot:          true,
	}
}

func TestDeprovision(t *testing.T) {
	fake := newFake(provider.StatusRunning)
	addWeb1Disks(fake)
	fake.AddConfig(provider.Config{LinodeID: testLinode, Label: "boot-a"})
	fake.AddConfig(provider.Config{LinodeID: testLinode, Label: "boot-b"})
	pub := &events.Memory{}
	m := newTestMachine(t, fake, pub)

	if err := Deprovision(context.Background(), m); err != nil {
		t.Fatalf("Deprovision() error = %v", err)
	}

	if got := diskIDs(fake.Disks(testLinode)); !reflect.DeepEqual(got, []provider.DiskID{2, 3}) {
		t.Errorf("remaining disks = %v, want [2 3]", got)
	}
	if n := len(fake.Configs(testLinode)); n != 0 {
		t.Errorf("expected no configs, got %d", n)
	}
	if n := fake.CallCount(provider.MethodDeleteDisk); n != 1 {
		t.Errorf("expected 1 disk delete, got %d", n)
	}
	if m.Phase() != v1alpha1.NodePhaseShutdown {
		t.Errorf("Phase() = %s, want Shutdown", m.Phase())
	}

	node := m.Node()
	if status.IsConditionTrue(node, v1alpha1.ConditionDisksProvisioned) ||
		status.IsConditionTrue(node, v1alpha1.ConditionBootConfigured) {
		t.Errorf("conditions = %+v", node.Status.Conditions)
	}

	want := []string{events.TypeLoaded, events.TypeShutdown, events.TypeConfigsDeleted, events.TypeDisksDeleted}
	if !reflect.DeepEqual(pub.Types(), want) {
		t.Errorf("events = %v, want %v", pub.Types(), want)
	}
}

func TestDeprovision_PoweredOff(t *testing.T) {
	fake := newFake(provider.StatusPoweredOff)
	m := newTestMachine(t, fake, nil)

	if err := Deprovision(context.Background(), m); err != nil {
		t.Fatalf("Deprovision() error = %v", err)
	}
	if n := fake.CallCount(provider.MethodShutdown); n != 1 {
		t.Errorf("expected 1 shutdown, got %d", n)
	}
}

func TestDeprovision_StopsAtFirstFailure(t *testing.T) {
	tests := []struct {
		name             string
		failActions      map[string]bool
		errs             map[string]error
		wantErr          error
		wantConfigDelete int
		wantDiskDelete   int
		wantConfigsLeft  int
	}{
		{
			name:             "shutdown job fails",
			failActions:      map[string]bool{"linode.shutdown": true},
			wantErr:          job.ErrJobFailed,
			wantConfigDelete: 0,
			wantDiskDelete:   0,
			wantConfigsLeft:  1,
		},
		{
			name:             "config delete fails",
			errs:             map[string]error{provider.MethodDeleteConfig: errors.New("api down")},
			wantConfigDelete: 1,
			wantDiskDelete:   0,
			wantConfigsLeft:  1,
		},
		{
			name:             "disk delete job fails",
			failActions:      map[string]bool{"linode.disk.delete": true},
			wantErr:          job.ErrJobFailed,
			wantConfigDelete: 1,
			wantDiskDelete:   1,
			wantConfigsLeft:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake(provider.StatusRunning)
			addWeb1Disks(fake)
			fake.AddConfig(provider.Config{LinodeID: testLinode, Label: "boot-a"})
			fake.FailActions = tt.failActions
			pub := &events.Memory{}
			m := newTestMachine(t, fake, pub)
			fake.Errors = tt.errs

			err := Deprovision(context.Background(), m)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Deprovision() error = %v, want %v", err, tt.wantErr)
			}
			if n := fake.CallCount(provider.MethodDeleteConfig); n != tt.wantConfigDelete {
				t.Errorf("config deletes = %d, want %d", n, tt.wantConfigDelete)
			}
			if n := fake.CallCount(provider.MethodDeleteDisk); n != tt.wantDiskDelete {
				t.Errorf("disk deletes = %d, want %d", n, tt.wantDiskDelete)
			}
			if n := len(fake.Configs(testLinode)); n != tt.wantConfigsLeft {
				t.Errorf("configs left = %d, want %d", n, tt.wantConfigsLeft)
			}
			if m.Phase() != v1alpha1.NodePhaseFailed {
				t.Errorf("Phase() = %s, want Failed", m.Phase())
			}
			types := pub.Types()
			if types[len(types)-1] != events.TypeFailed {
				t.Errorf("events = %v", types)
			}
		})
	}
}

func TestProvision(t *testing.T) {
	fake := withCatalog(newFake(provider.StatusRunning))
	pub := &events.Memory{}
	m := newTestMachine(t, fake, pub)

	result, err := Provision(context.Background(), m, testSpec(t))
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if len(fake.DiskRequests) != 1 {
		t.Fatalf("expected 1 swap request, got %d", len(fake.DiskRequests))
	}
	swap := fake.DiskRequests[0]
	if swap.Type != provider.DiskTypeSwap || swap.Size != 256 || swap.Label != "web1-swap" {
		t.Errorf("swap request = %+v", swap)
	}

	if len(fake.StackScriptRequests) != 1 {
		t.Fatalf("expected 1 template request, got %d", len(fake.StackScriptRequests))
	}
	root := fake.StackScriptRequests[0]
	if root.Size != 1000-256 {
		t.Errorf("root size = %d, want %d", root.Size, 1000-256)
	}
	if root.DistributionID != 77 || root.StackScriptID != 5 || root.Label != "web1-root" || root.RootPass != "secret" {
		t.Errorf("root request = %+v", root)
	}

	if len(fake.ConfigRequests) != 1 {
		t.Fatalf("expected 1 config request, got %d", len(fake.ConfigRequests))
	}
	cfg := fake.ConfigRequests[0]
	if cfg.KernelID != 121 {
		t.Errorf("kernel = %d, want 121", cfg.KernelID)
	}
	if cfg.DiskList[0] != result.RootDiskID || cfg.DiskList[1] != result.SwapDiskID {
		t.Errorf("disk list = %v, result = %+v", cfg.DiskList, result)
	}
	if !reflect.DeepEqual(fake.BootRequests, []provider.ConfigID{result.ConfigID}) {
		t.Errorf("boot requests = %v, want [%d]", fake.BootRequests, result.ConfigID)
	}

	if m.Phase() != v1alpha1.NodePhaseBooted {
		t.Errorf("Phase() = %s, want Booted", m.Phase())
	}
	node := m.Node()
	if node.Status.RootDiskID != int(result.RootDiskID) || node.Status.ConfigID != int(result.ConfigID) {
		t.Errorf("node status = %+v", node.Status)
	}
	if !status.IsConditionTrue(node, v1alpha1.ConditionReady) {
		t.Error("expected Ready condition")
	}

	want := []string{
		events.TypeLoaded,
		events.TypeShutdown,
		events.TypeDiskCreated,
		events.TypeConfigCreated,
		events.TypeBoot,
	}
	if !reflect.DeepEqual(pub.Types(), want) {
		t.Errorf("events = %v, want %v", pub.Types(), want)
	}
}

func TestProvision_ReusesSwapWithoutBoot(t *testing.T) {
	fake := withCatalog(newFake(provider.StatusPoweredOff))
	fake.AddDisk(provider.Disk{ID: 9, LinodeID: testLinode, Label: "old-swap", Type: provider.DiskTypeSwap, Size: 20})
	m := newTestMachine(t, fake, nil)

	spec := testSpec(t)
	spec.Boot = false
	result, err := Provision(context.Background(), m, spec)
	if err != nil {
		t.Fatalf("Provision() error = %v", err)
	}

	if result.SwapDiskID != 9 {
		t.Errorf("swap disk = %d, want 9", result.SwapDiskID)
	}
	for _, method := range []string{provider.MethodShutdown, provider.MethodCreateDisk, provider.MethodBoot} {
		if n := fake.CallCount(method); n != 0 {
			t.Errorf("%s called %d times", method, n)
		}
	}
	if got := fake.StackScriptRequests[0].Size; got != 980 {
		t.Errorf("root size = %d, want 980", got)
	}
	if m.Phase() != v1alpha1.NodePhaseLoaded {
		t.Errorf("Phase() = %s, want Loaded", m.Phase())
	}
}

func TestProvision_Failures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*provider.FakeClient, *ProvisionSpec)
		wantErr    error
		wantConfig int
		wantCond   string
	}{
		{
			name: "root disk job fails",
			setup: func(f *provider.FakeClient, _ *ProvisionSpec) {
				f.FailActions = map[string]bool{"linode.disk.createfromstackscript": true}
			},
			wantErr:  job.ErrJobFailed,
			wantCond: v1alpha1.ConditionDisksProvisioned,
		},
		{
			name: "unknown distribution",
			setup: func(_ *provider.FakeClient, s *ProvisionSpec) {
				s.Distribution = catalog.Exact("Slackware")
			},
			wantErr:  catalog.ErrTemplateNotFound,
			wantCond: v1alpha1.ConditionDisksProvisioned,
		},
		{
			name: "unknown kernel",
			setup: func(_ *provider.FakeClient, s *ProvisionSpec) {
				s.Kernel = catalog.Exact("Latest 3.0")
			},
			wantErr:  catalog.ErrKernelNotFound,
			wantCond: v1alpha1.ConditionBootConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := withCatalog(newFake(provider.StatusPoweredOff))
			spec := testSpec(t)
			tt.setup(fake, &spec)
			m := newTestMachine(t, fake, nil)

			_, err := Provision(context.Background(), m, spec)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Provision() error = %v, want %v", err, tt.wantErr)
			}
			if n := fake.CallCount(provider.MethodBoot); n != 0 {
				t.Errorf("expected no boot, got %d", n)
			}
			if m.Phase() != v1alpha1.NodePhaseFailed {
				t.Errorf("Phase() = %s, want Failed", m.Phase())
			}
			cond := status.GetCondition(m.Node(), tt.wantCond)
			if cond == nil || cond.Status != v1alpha1.ConditionFalse {
				t.Errorf("condition %s = %+v", tt.wantCond, cond)
			}
		})
	}
}

func TestBootFirstConfig(t *testing.T) {
	tests := []struct {
		name      string
		configs   []string
		label     string
		wait      bool
		want      string
		wantErr   error
		wantPhase v1alpha1.NodePhase
	}{
		{name: "first config", configs: []string{"a", "b"}, wait: true, want: "a", wantPhase: v1alpha1.NodePhaseBooted},
		{name: "by label", configs: []string{"a", "b"}, label: "b", wait: true, want: "b", wantPhase: v1alpha1.NodePhaseBooted},
		{name: "no wait", configs: []string{"a"}, want: "a", wantPhase: v1alpha1.NodePhaseBooting},
		{name: "label missing", configs: []string{"a"}, label: "c", wantErr: ErrNoBootConfig, wantPhase: v1alpha1.NodePhaseLoaded},
		{name: "no configs", wantErr: ErrNoBootConfig, wantPhase: v1alpha1.NodePhaseLoaded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake(provider.StatusPoweredOff)
			ids := map[string]provider.ConfigID{}
			for _, label := range tt.configs {
				ids[label] = fake.AddConfig(provider.Config{LinodeID: testLinode, Label: label})
			}
			m := newTestMachine(t, fake, nil)

			configID, jobID, err := BootFirstConfig(context.Background(), m, tt.label, tt.wait)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("BootFirstConfig() error = %v, want %v", err, tt.wantErr)
				}
				if fake.MutatingCalls() != 0 {
					t.Errorf("expected no mutating calls, got %d", fake.MutatingCalls())
				}
			} else {
				if err != nil {
					t.Fatalf("BootFirstConfig() error = %v", err)
				}
				if configID != ids[tt.want] {
					t.Errorf("config = %d, want %d (%s)", configID, ids[tt.want], tt.want)
				}
				if !tt.wait && jobID == 0 {
					t.Error("expected a job ID when not waiting")
				}
			}
			if m.Phase() != tt.wantPhase {
				t.Errorf("Phase() = %s, want %s", m.Phase(), tt.wantPhase)
			}
		})
	}
}

func TestSpecFromNode(t *testing.T) {
	n := v1alpha1.NewNode("web1")
	n.Spec.Distribution = `/Debian \d+/`
	n.Spec.StackScriptID = 5
	n.Spec.RootDiskSizeMB = 2048
	n.Spec.StackScriptData = map[string]string{"hostname": "web1"}
	n.Spec.Params = map[string]string{"PaymentTerm": "1"}

	spec, err := SpecFromNode(n)
	if err != nil {
		t.Fatalf("SpecFromNode() error = %v", err)
	}
	if !spec.Distribution.IsPattern() || spec.Distribution.String() != `/Debian \d+/` {
		t.Errorf("distribution = %s", spec.Distribution)
	}
	if spec.Kernel.String() != v1alpha1.DefaultKernel {
		t.Errorf("kernel = %s", spec.Kernel)
	}
	if spec.StackScriptID != 5 || spec.RootDiskSizeMB != 2048 || spec.SwapSizeMB != v1alpha1.DefaultSwapSizeMB || !spec.Boot {
		t.Errorf("spec = %+v", spec)
	}
	if spec.UDFResponses["hostname"] != "web1" || spec.Extra["PaymentTerm"] != "1" {
		t.Errorf("udf = %v, extra = %v", spec.UDFResponses, spec.Extra)
	}

	n.Spec.Kernel = "/(/"
	if _, err := SpecFromNode(n); err == nil {
		t.Error("expected error for invalid kernel pattern")
	}
}

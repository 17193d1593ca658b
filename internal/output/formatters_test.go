package output

import (
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/machine"
	"github.com/jbweber/linode-utils/internal/provider"
)

func testLinodes() []provider.Linode {
	return []provider.Linode{
		{ID: 42, Label: "web1", DisplayGroup: "automatable", Status: provider.StatusRunning, TotalHD: 1000, TotalRAM: 512},
		{ID: 43, Label: "db1", Status: provider.StatusPoweredOff, TotalHD: 2000, TotalRAM: 1024},
	}
}

func testDetails() machine.Details {
	cfg := provider.Config{ID: 9, Label: "boot-20260301-120000", KernelID: 121, RootDeviceNum: 1}
	cfg.DiskList[0] = 1
	cfg.DiskList[1] = 2
	return machine.Details{
		Linode: testLinodes()[0],
		Disks: []provider.Disk{
			{ID: 1, Label: "web1-root", Type: provider.DiskTypeExt4, Size: 744},
			{ID: 2, Label: "web1-swap", Type: provider.DiskTypeSwap, Size: 256},
		},
		Configs: []provider.Config{cfg},
	}
}

func testNode() *v1alpha1.Node {
	n := v1alpha1.NewNode("web1")
	n.Spec.Distribution = "Debian 6"
	n.Status.Phase = v1alpha1.NodePhaseBooted
	n.Status.LinodeID = 42
	n.Status.PowerState = "running"
	n.Status.RootDiskID = 1
	n.Status.SwapDiskID = 2
	return n
}

func TestTableFormatter_FormatLinodes(t *testing.T) {
	tests := []struct {
		name      string
		linodes   []provider.Linode
		noHeaders bool
		want      []string
		notWant   []string
	}{
		{
			name:    "empty",
			linodes: nil,
			want:    []string{"No linodes found"},
		},
		{
			name:    "with headers",
			linodes: testLinodes(),
			want:    []string{"ID", "LABEL", "GROUP", "web1", "automatable", "running", "1000 MB", "db1", "powered off"},
		},
		{
			name:      "no headers",
			linodes:   testLinodes(),
			noHeaders: true,
			want:      []string{"web1", "db1"},
			notWant:   []string{"LABEL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &TableFormatter{NoHeaders: tt.noHeaders}
			out, err := f.FormatLinodes(tt.linodes)
			if err != nil {
				t.Fatalf("FormatLinodes() error = %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output missing %q:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("output should not contain %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestTableFormatter_FormatLinodes_MissingGroup(t *testing.T) {
	f := &TableFormatter{NoHeaders: true}
	out, err := f.FormatLinodes(testLinodes()[1:])
	if err != nil {
		t.Fatalf("FormatLinodes() error = %v", err)
	}
	if fields := strings.Fields(out); len(fields) < 3 || fields[2] != "-" {
		t.Errorf("expected '-' for missing group, got %q", out)
	}
}

func TestTableFormatter_FormatDetails(t *testing.T) {
	f := &TableFormatter{}
	out, err := f.FormatDetails(testDetails())
	if err != nil {
		t.Fatalf("FormatDetails() error = %v", err)
	}
	for _, s := range []string{"Disks:", "web1-root", "swap", "Configs:", "boot-20260301-120000", "sda=1,sdb=2"} {
		if !strings.Contains(out, s) {
			t.Errorf("output missing %q:\n%s", s, out)
		}
	}

	empty := machine.Details{Linode: testLinodes()[0]}
	out, err = f.FormatDetails(empty)
	if err != nil {
		t.Fatalf("FormatDetails() error = %v", err)
	}
	if strings.Count(out, "none") != 2 {
		t.Errorf("expected 'none' for disks and configs:\n%s", out)
	}
}

func TestTableFormatter_FormatNode(t *testing.T) {
	f := &TableFormatter{}
	out, err := f.FormatNode(testNode())
	if err != nil {
		t.Fatalf("FormatNode() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines:\n%s", len(lines), out)
	}
	want := []string{"web1", "Booted", "42", "automatable", "running", "1", "2", "-"}
	if got := strings.Fields(lines[1]); strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("row = %v, want %v", got, want)
	}
}

func TestFormatDiskList(t *testing.T) {
	var list [provider.MaxDeviceSlots]provider.DiskID
	if got := formatDiskList(list); got != "-" {
		t.Errorf("empty list = %q", got)
	}
	list[0] = 5
	list[2] = 7
	if got := formatDiskList(list); got != "sda=5,sdc=7" {
		t.Errorf("formatDiskList() = %q", got)
	}
}

func TestYAMLFormatter(t *testing.T) {
	f := &YAMLFormatter{}

	out, err := f.FormatLinodes(testLinodes())
	if err != nil {
		t.Fatalf("FormatLinodes() error = %v", err)
	}
	var linodes []provider.Linode
	if err := yaml.Unmarshal([]byte(out), &linodes); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if len(linodes) != 2 || linodes[0].Label != "web1" {
		t.Errorf("linodes = %+v", linodes)
	}

	out, err = f.FormatDetails(testDetails())
	if err != nil {
		t.Fatalf("FormatDetails() error = %v", err)
	}
	var d machine.Details
	if err := yaml.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if len(d.Disks) != 2 || d.Configs[0].DiskList[1] != 2 {
		t.Errorf("details = %+v", d)
	}

	n := testNode()
	n.APIVersion = ""
	out, err = f.FormatNode(n)
	if err != nil {
		t.Fatalf("FormatNode() error = %v", err)
	}
	if !strings.Contains(out, "apiVersion: linode.cofront.xyz/v1alpha1") || !strings.Contains(out, "phase: Booted") {
		t.Errorf("node output:\n%s", out)
	}

	out, err = f.FormatLinodes(nil)
	if err != nil || out != "[]\n" {
		t.Errorf("empty list = %q, %v", out, err)
	}
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONFormatter{}

	out, err := f.FormatLinodes(nil)
	if err != nil || out != "[]\n" {
		t.Errorf("empty list = %q, %v", out, err)
	}

	out, err = f.FormatLinodes(testLinodes())
	if err != nil {
		t.Fatalf("FormatLinodes() error = %v", err)
	}
	var linodes []provider.Linode
	if err := json.Unmarshal([]byte(out), &linodes); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(linodes) != 2 || linodes[1].Status != provider.StatusPoweredOff {
		t.Errorf("linodes = %+v", linodes)
	}

	out, err = f.FormatDetails(testDetails())
	if err != nil {
		t.Fatalf("FormatDetails() error = %v", err)
	}
	var d machine.Details
	if err := json.Unmarshal([]byte(out), &d); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if d.Linode.ID != 42 || len(d.Configs) != 1 {
		t.Errorf("details = %+v", d)
	}

	out, err = f.FormatNode(testNode())
	if err != nil {
		t.Fatalf("FormatNode() error = %v", err)
	}
	var n v1alpha1.Node
	if err := json.Unmarshal([]byte(out), &n); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if n.Status.Phase != v1alpha1.NodePhaseBooted || n.Kind != v1alpha1.NodeKind {
		t.Errorf("node = %+v", n)
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  Format
		want    interface{}
		wantErr bool
	}{
		{format: FormatTable, want: &TableFormatter{}},
		{format: FormatYAML, want: &YAMLFormatter{}},
		{format: FormatJSON, want: &JSONFormatter{}},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f, err := NewFormatter(Options{Format: tt.format})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFormatter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			switch tt.want.(type) {
			case *TableFormatter:
				if _, ok := f.(*TableFormatter); !ok {
					t.Errorf("got %T", f)
				}
			case *YAMLFormatter:
				if _, ok := f.(*YAMLFormatter); !ok {
					t.Errorf("got %T", f)
				}
			case *JSONFormatter:
				if _, ok := f.(*JSONFormatter); !ok {
					t.Errorf("got %T", f)
				}
			}
		})
	}
}

func TestValidateFormat(t *testing.T) {
	for _, valid := range []string{"table", "yaml", "json"} {
		if err := ValidateFormat(valid); err != nil {
			t.Errorf("ValidateFormat(%q) error = %v", valid, err)
		}
	}
	for _, invalid := range []string{"", "xml", "TABLE"} {
		if err := ValidateFormat(invalid); err == nil {
			t.Errorf("ValidateFormat(%q) expected error", invalid)
		}
	}
}

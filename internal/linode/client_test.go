package linode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jbweber/linode-utils/internal/provider"
)

// apiServer answers actions with canned DATA payloads and records the form
// of every request.
type apiServer struct {
	t        *testing.T
	data     map[string]string
	errors   map[string]string
	requests []url.Values
}

func newAPIServer(t *testing.T) (*apiServer, *Client) {
	t.Helper()
	s := &apiServer{t: t, data: map[string]string{}, errors: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(srv.Close)
	return s, NewClient(srv.URL, "secret", nil)
}

func (s *apiServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.t.Errorf("method = %s, want POST", r.Method)
	}
	if err := r.ParseForm(); err != nil {
		s.t.Errorf("ParseForm() error = %v", err)
	}
	s.requests = append(s.requests, r.PostForm)

	action := r.PostForm.Get("api_action")
	w.Header().Set("Content-Type", "application/json")
	if e, ok := s.errors[action]; ok {
		_, _ = fmt.Fprintf(w, `{"ERRORARRAY":[%s],"ACTION":%q,"DATA":{}}`, e, action)
		return
	}
	data, ok := s.data[action]
	if !ok {
		data = "{}"
	}
	_, _ = fmt.Fprintf(w, `{"ERRORARRAY":[],"ACTION":%q,"DATA":%s}`, action, data)
}

func (s *apiServer) last() url.Values {
	s.t.Helper()
	if len(s.requests) == 0 {
		s.t.Fatal("no requests recorded")
	}
	return s.requests[len(s.requests)-1]
}

func TestClient_RequestParams(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.boot"] = `{"JobID":1234}`

	jobID, err := c.Boot(context.Background(), 42, 9)
	if err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if jobID != 1234 {
		t.Errorf("jobID = %d, want 1234", jobID)
	}

	form := s.last()
	want := map[string]string{
		"api_key":    "secret",
		"api_action": "linode.boot",
		"LinodeID":   "42",
		"ConfigID":   "9",
	}
	for k, v := range want {
		if got := form.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestClient_BootWithoutConfig(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.boot"] = `{"JobID":1}`

	if _, err := c.Boot(context.Background(), 42, 0); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if _, ok := s.last()["ConfigID"]; ok {
		t.Error("ConfigID should be omitted when zero")
	}
}

func TestClient_APIError(t *testing.T) {
	s, c := newAPIServer(t)
	s.errors["linode.shutdown"] = `{"ERRORCODE":5,"ERRORMESSAGE":"Object not found"},{"ERRORCODE":4,"ERRORMESSAGE":"Authentication failed"}`

	_, err := c.Shutdown(context.Background(), 42)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Action != "linode.shutdown" || len(apiErr.Errors) != 2 {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !apiErr.HasCode(5) || apiErr.HasCode(7) {
		t.Error("HasCode() mismatch")
	}
	if !strings.Contains(err.Error(), "Object not found (code 5)") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestClient_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", nil)
	_, err := c.ListLinodes(context.Background(), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("HTTP status errors should not be APIErrors")
	}
	if !strings.Contains(err.Error(), "status 502") || !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("error = %v", err)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", nil)
	if _, err := c.ListKernels(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	_, c := newAPIServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListJobs(ctx, 42)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClient_ListLinodes(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.list"] = `[
		{"LINODEID":42,"LABEL":"web1","LPM_DISPLAYGROUP":"automatable","STATUS":1,"TOTALHD":1000,"TOTALRAM":512,"DATACENTERID":"6"},
		{"LINODEID":43,"LABEL":"db1","LPM_DISPLAYGROUP":"","STATUS":2,"TOTALHD":2000,"TOTALRAM":1024,"DATACENTERID":6}
	]`

	linodes, err := c.ListLinodes(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListLinodes() error = %v", err)
	}
	want := []provider.Linode{
		{ID: 42, Label: "web1", DisplayGroup: "automatable", Status: provider.StatusRunning, TotalHD: 1000, TotalRAM: 512, DatacenterID: 6},
		{ID: 43, Label: "db1", Status: provider.StatusPoweredOff, TotalHD: 2000, TotalRAM: 1024, DatacenterID: 6},
	}
	if len(linodes) != len(want) {
		t.Fatalf("got %d linodes, want %d", len(linodes), len(want))
	}
	for i := range want {
		if linodes[i] != want[i] {
			t.Errorf("linodes[%d] = %+v, want %+v", i, linodes[i], want[i])
		}
	}
	if _, ok := s.last()["LinodeID"]; ok {
		t.Error("LinodeID should be omitted when listing all")
	}

	if _, err := c.ListLinodes(context.Background(), 42); err != nil {
		t.Fatalf("ListLinodes(42) error = %v", err)
	}
	if got := s.last().Get("LinodeID"); got != "42" {
		t.Errorf("LinodeID = %q, want 42", got)
	}
}

func TestClient_Disks(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.disk.list"] = `[
		{"DISKID":1,"LINODEID":42,"LABEL":"web1-root","TYPE":"ext4","SIZE":744,"ISREADONLY":0},
		{"DISKID":2,"LINODEID":42,"LABEL":"web1-swap","TYPE":"swap","SIZE":256,"ISREADONLY":"1"}
	]`
	s.data["linode.disk.delete"] = `{"JobID":77,"DiskID":1}`
	s.data["linode.disk.create"] = `{"JobID":78,"DiskID":3}`
	ctx := context.Background()

	disks, err := c.ListDisks(ctx, 42)
	if err != nil {
		t.Fatalf("ListDisks() error = %v", err)
	}
	if len(disks) != 2 || disks[0].Type != provider.DiskTypeExt4 || disks[0].ReadOnly || !disks[1].ReadOnly || !disks[1].IsSwap() {
		t.Errorf("disks = %+v", disks)
	}

	jobID, err := c.DeleteDisk(ctx, 42, 1)
	if err != nil || jobID != 77 {
		t.Errorf("DeleteDisk() = %d, %v", jobID, err)
	}
	if got := s.last().Get("DiskID"); got != "1" {
		t.Errorf("DiskID = %q", got)
	}

	diskID, jobID, err := c.CreateDisk(ctx, 42, provider.DiskSpec{Label: "web1-swap", Type: provider.DiskTypeSwap, Size: 256})
	if err != nil || diskID != 3 || jobID != 78 {
		t.Errorf("CreateDisk() = %d, %d, %v", diskID, jobID, err)
	}
	form := s.last()
	if form.Get("Label") != "web1-swap" || form.Get("Type") != "swap" || form.Get("Size") != "256" {
		t.Errorf("create form = %v", form)
	}
}

func TestClient_CreateDiskFromStackScript(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.disk.createfromstackscript"] = `{"JobID":80,"DiskID":5}`

	spec := provider.StackScriptDiskSpec{
		StackScriptID:  1000,
		DistributionID: 60,
		Label:          "web1-root",
		Size:           744,
		RootPass:       "hunter2",
		RootSSHKey:     "ssh-ed25519 AAAA test",
		UDFResponses:   map[string]any{"user_data": "I2Nsb3Vk"},
		Params: map[string]any{
			"DatacenterID": 6,
			"Tags":         map[string]any{"role": "web"},
			"Note":         "plain text",
		},
	}
	diskID, jobID, err := c.CreateDiskFromStackScript(context.Background(), 42, spec)
	if err != nil {
		t.Fatalf("CreateDiskFromStackScript() error = %v", err)
	}
	if diskID != 5 || jobID != 80 {
		t.Errorf("got disk %d job %d", diskID, jobID)
	}

	form := s.last()
	want := map[string]string{
		"StackScriptID":  "1000",
		"DistributionID": "60",
		"Label":          "web1-root",
		"Size":           "744",
		"rootPass":       "hunter2",
		"rootSSHKey":     "ssh-ed25519 AAAA test",
		"DatacenterID":   "6",
		"Tags":           `{"role":"web"}`,
		"Note":           "plain text",
	}
	for k, v := range want {
		if got := form.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
	var udf map[string]string
	if err := json.Unmarshal([]byte(form.Get("StackScriptUDFResponses")), &udf); err != nil {
		t.Fatalf("StackScriptUDFResponses is not JSON: %v", err)
	}
	if udf["user_data"] != "I2Nsb3Vk" {
		t.Errorf("udf = %v", udf)
	}
}

func TestClient_CreateDiskFromStackScript_EmptyResponses(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.disk.createfromstackscript"] = `{"JobID":80,"DiskID":5}`

	_, _, err := c.CreateDiskFromStackScript(context.Background(), 42, provider.StackScriptDiskSpec{Label: "r"})
	if err != nil {
		t.Fatalf("CreateDiskFromStackScript() error = %v", err)
	}
	form := s.last()
	if got := form.Get("StackScriptUDFResponses"); got != "{}" {
		t.Errorf("StackScriptUDFResponses = %q, want {}", got)
	}
	if _, ok := form["rootSSHKey"]; ok {
		t.Error("rootSSHKey should be omitted when empty")
	}
}

func TestClient_Catalog(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["avail.distributions"] = `[{"DISTRIBUTIONID":60,"LABEL":"Debian 6","IS64BIT":1,"MINIMAGESIZE":600}]`
	s.data["avail.kernels"] = `[{"KERNELID":121,"LABEL":"Latest 2.6 Paravirt (2.6.39-x86_64-linode19)","ISXEN":1,"ISKVM":0,"ISPVOPS":true}]`
	ctx := context.Background()

	dists, err := c.ListDistributions(ctx)
	if err != nil {
		t.Fatalf("ListDistributions() error = %v", err)
	}
	if len(dists) != 1 || dists[0] != (provider.Distribution{ID: 60, Label: "Debian 6", Is64Bit: true, MinImageSize: 600}) {
		t.Errorf("dists = %+v", dists)
	}

	kernels, err := c.ListKernels(ctx)
	if err != nil {
		t.Fatalf("ListKernels() error = %v", err)
	}
	want := provider.Kernel{ID: 121, Label: "Latest 2.6 Paravirt (2.6.39-x86_64-linode19)", IsXen: true, IsPVOPS: true}
	if len(kernels) != 1 || kernels[0] != want {
		t.Errorf("kernels = %+v", kernels)
	}
	if _, ok := s.last()["LinodeID"]; ok {
		t.Error("catalog calls should not send LinodeID")
	}
}

func TestClient_Configs(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.config.create"] = `{"ConfigID":9}`
	s.data["linode.config.list"] = `[{"ConfigID":9,"LinodeID":42,"KernelID":121,"Label":"boot","Comments":"run-1","DiskList":"1,2,,,,,,,","RootDeviceNum":1}]`
	ctx := context.Background()

	spec := provider.ConfigSpec{KernelID: 121, Label: "boot", Comments: "run-1", RootDeviceNum: 1}
	spec.DiskList[0] = 1
	spec.DiskList[1] = 2
	configID, err := c.CreateConfig(ctx, 42, spec)
	if err != nil || configID != 9 {
		t.Fatalf("CreateConfig() = %d, %v", configID, err)
	}
	form := s.last()
	if form.Get("DiskList") != "1,2,,,,,,," || form.Get("KernelID") != "121" || form.Get("RootDeviceNum") != "1" {
		t.Errorf("create form = %v", form)
	}

	configs, err := c.ListConfigs(ctx, 42)
	if err != nil {
		t.Fatalf("ListConfigs() error = %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("got %d configs", len(configs))
	}
	got := configs[0]
	if got.ID != 9 || got.KernelID != 121 || got.DiskList != spec.DiskList || got.Comments != "run-1" {
		t.Errorf("config = %+v", got)
	}

	if err := c.DeleteConfig(ctx, 42, 9); err != nil {
		t.Fatalf("DeleteConfig() error = %v", err)
	}
	if got := s.last().Get("ConfigID"); got != "9" {
		t.Errorf("ConfigID = %q", got)
	}
}

func TestClient_ListConfigs_BadDiskList(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.config.list"] = `[{"ConfigID":9,"DiskList":"1,x"}]`

	if _, err := c.ListConfigs(context.Background(), 42); err == nil {
		t.Fatal("expected error for malformed disk list")
	}
}

func TestClient_ListJobs(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.job.list"] = `[
		{"JOBID":1,"LINODEID":42,"ACTION":"linode.shutdown","LABEL":"System Shutdown","HOST_FINISH_DT":"","HOST_SUCCESS":"","HOST_MESSAGE":""},
		{"JOBID":2,"LINODEID":42,"ACTION":"linode.boot","LABEL":"System Boot","HOST_FINISH_DT":"2026-03-01 12:00:05.0","HOST_SUCCESS":1,"HOST_MESSAGE":""},
		{"JOBID":3,"LINODEID":42,"ACTION":"disk.delete","LABEL":"Delete disk","HOST_FINISH_DT":"2026-03-01 12:01:00","HOST_SUCCESS":0,"HOST_MESSAGE":"disk in use"}
	]`

	jobs, err := c.ListJobs(context.Background(), 42)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("got %d jobs", len(jobs))
	}
	if jobs[0].Done() || jobs[0].HostSuccess {
		t.Errorf("job 1 should be pending: %+v", jobs[0])
	}

	wantFinish := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)
	if !jobs[1].Done() || !jobs[1].HostFinishDT.Equal(wantFinish) || !jobs[1].HostSuccess {
		t.Errorf("job 2 = %+v", jobs[1])
	}
	if !jobs[2].Done() || jobs[2].HostSuccess || jobs[2].HostMessage != "disk in use" {
		t.Errorf("job 3 = %+v", jobs[2])
	}
}

func TestClient_ListJobs_BadFinishTime(t *testing.T) {
	s, c := newAPIServer(t)
	s.data["linode.job.list"] = `[{"JOBID":1,"HOST_FINISH_DT":"yesterday"}]`

	if _, err := c.ListJobs(context.Background(), 42); err == nil {
		t.Fatal("expected error for malformed finish time")
	}
}

func TestParamValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "string verbatim", in: `{"already":"json"}`, want: `{"already":"json"}`},
		{name: "int", in: 6, want: "6"},
		{name: "bool", in: true, want: "true"},
		{name: "map", in: map[string]any{"a": "b"}, want: `{"a":"b"}`},
		{name: "list", in: []string{"x", "y"}, want: `["x","y"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := paramValue(tt.in)
			if err != nil {
				t.Fatalf("paramValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("paramValue() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := paramValue(make(chan int)); err == nil {
		t.Error("expected error for a value JSON cannot encode")
	}
}

func TestParseDiskList(t *testing.T) {
	tests := []struct {
		in      string
		want    map[int]provider.DiskID
		wantErr bool
	}{
		{in: "", want: map[int]provider.DiskID{}},
		{in: "12,13,,,,,,,", want: map[int]provider.DiskID{0: 12, 1: 13}},
		{in: ",,7", want: map[int]provider.DiskID{2: 7}},
		{in: "1,2,3,4,5,6,7,8,9,10", wantErr: true},
		{in: "a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDiskList(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDiskList(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			for i, id := range got {
				if id != tt.want[i] {
					t.Errorf("slot %d = %d, want %d", i, id, tt.want[i])
				}
			}
		})
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in      string
		want    flexInt
		wantErr bool
	}{
		{in: `42`, want: 42},
		{in: `"42"`, want: 42},
		{in: `""`, want: 0},
		{in: `null`, want: 0},
		{in: `"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var got flexInt
			err := json.Unmarshal([]byte(tt.in), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

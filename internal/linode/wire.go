package linode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jbweber/linode-utils/internal/provider"
)

// The API is loose about scalar types: identifiers and flags arrive as JSON
// numbers, numeric strings or empty strings depending on the action.

// flexInt decodes a number, a numeric string, "" or null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s", string(b))
	}
	*f = flexInt(n)
	return nil
}

// flexBool decodes true/false, 0/1, "0"/"1" and "".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "true":
		*f = true
		return nil
	case "false", "null":
		*f = false
		return nil
	}
	var n flexInt
	if err := n.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("invalid boolean %s", string(b))
	}
	*f = n != 0
	return nil
}

// finishLayouts are the timestamp formats seen in HOST_FINISH_DT.
var finishLayouts = []string{
	"2006-01-02 15:04:05.0",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseFinishTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range finishLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid job finish time %q", s)
}

// parseDiskList parses the comma separated slot list "12,13,,,,,,,".
func parseDiskList(s string) ([provider.MaxDeviceSlots]provider.DiskID, error) {
	var list [provider.MaxDeviceSlots]provider.DiskID
	s = strings.TrimSpace(s)
	if s == "" {
		return list, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) > provider.MaxDeviceSlots {
		return list, fmt.Errorf("disk list %q has more than %d slots", s, provider.MaxDeviceSlots)
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return list, fmt.Errorf("invalid disk id %q in disk list: %w", p, err)
		}
		list[i] = provider.DiskID(id)
	}
	return list, nil
}

// formatDiskList renders every slot, leaving empty ones blank.
func formatDiskList(list [provider.MaxDeviceSlots]provider.DiskID) string {
	parts := make([]string, len(list))
	for i, id := range list {
		if id != 0 {
			parts[i] = strconv.Itoa(int(id))
		}
	}
	return strings.Join(parts, ",")
}

type linodeRecord struct {
	LinodeID     flexInt `json:"LINODEID"`
	Label        string  `json:"LABEL"`
	DisplayGroup string  `json:"LPM_DISPLAYGROUP"`
	Status       flexInt `json:"STATUS"`
	TotalHD      flexInt `json:"TOTALHD"`
	TotalRAM     flexInt `json:"TOTALRAM"`
	DatacenterID flexInt `json:"DATACENTERID"`
}

func (r linodeRecord) toLinode() provider.Linode {
	return provider.Linode{
		ID:           provider.LinodeID(r.LinodeID),
		Label:        r.Label,
		DisplayGroup: r.DisplayGroup,
		Status:       provider.LinodeStatus(r.Status),
		TotalHD:      int(r.TotalHD),
		TotalRAM:     int(r.TotalRAM),
		DatacenterID: int(r.DatacenterID),
	}
}

type diskRecord struct {
	DiskID     flexInt  `json:"DISKID"`
	LinodeID   flexInt  `json:"LINODEID"`
	Label      string   `json:"LABEL"`
	Type       string   `json:"TYPE"`
	Size       flexInt  `json:"SIZE"`
	IsReadOnly flexBool `json:"ISREADONLY"`
}

func (r diskRecord) toDisk() provider.Disk {
	return provider.Disk{
		ID:       provider.DiskID(r.DiskID),
		LinodeID: provider.LinodeID(r.LinodeID),
		Label:    r.Label,
		Size:     int(r.Size),
		Type:     provider.DiskType(r.Type),
		ReadOnly: bool(r.IsReadOnly),
	}
}

type configRecord struct {
	ConfigID      flexInt `json:"ConfigID"`
	LinodeID      flexInt `json:"LinodeID"`
	KernelID      flexInt `json:"KernelID"`
	Label         string  `json:"Label"`
	Comments      string  `json:"Comments"`
	DiskList      string  `json:"DiskList"`
	RootDeviceNum flexInt `json:"RootDeviceNum"`
}

func (r configRecord) toConfig() (provider.Config, error) {
	list, err := parseDiskList(r.DiskList)
	if err != nil {
		return provider.Config{}, fmt.Errorf("config %d: %w", int(r.ConfigID), err)
	}
	return provider.Config{
		ID:            provider.ConfigID(r.ConfigID),
		LinodeID:      provider.LinodeID(r.LinodeID),
		Label:         r.Label,
		Comments:      r.Comments,
		KernelID:      provider.KernelID(r.KernelID),
		DiskList:      list,
		RootDeviceNum: int(r.RootDeviceNum),
	}, nil
}

type jobRecord struct {
	JobID        flexInt  `json:"JOBID"`
	LinodeID     flexInt  `json:"LINODEID"`
	Action       string   `json:"ACTION"`
	Label        string   `json:"LABEL"`
	HostFinishDT string   `json:"HOST_FINISH_DT"`
	HostSuccess  flexBool `json:"HOST_SUCCESS"`
	HostMessage  string   `json:"HOST_MESSAGE"`
}

func (r jobRecord) toJob() (provider.Job, error) {
	finished, err := parseFinishTime(r.HostFinishDT)
	if err != nil {
		return provider.Job{}, fmt.Errorf("job %d: %w", int(r.JobID), err)
	}
	return provider.Job{
		ID:           provider.JobID(r.JobID),
		LinodeID:     provider.LinodeID(r.LinodeID),
		Action:       r.Action,
		Label:        r.Label,
		HostFinishDT: finished,
		HostSuccess:  bool(r.HostSuccess),
		HostMessage:  r.HostMessage,
	}, nil
}

type distributionRecord struct {
	DistributionID flexInt  `json:"DISTRIBUTIONID"`
	Label          string   `json:"LABEL"`
	Is64Bit        flexBool `json:"IS64BIT"`
	MinImageSize   flexInt  `json:"MINIMAGESIZE"`
}

func (r distributionRecord) toDistribution() provider.Distribution {
	return provider.Distribution{
		ID:           provider.DistributionID(r.DistributionID),
		Label:        r.Label,
		Is64Bit:      bool(r.Is64Bit),
		MinImageSize: int(r.MinImageSize),
	}
}

type kernelRecord struct {
	KernelID flexInt  `json:"KERNELID"`
	Label    string   `json:"LABEL"`
	IsXen    flexBool `json:"ISXEN"`
	IsKVM    flexBool `json:"ISKVM"`
	IsPVOPS  flexBool `json:"ISPVOPS"`
}

func (r kernelRecord) toKernel() provider.Kernel {
	return provider.Kernel{
		ID:      provider.KernelID(r.KernelID),
		Label:   r.Label,
		IsXen:   bool(r.IsXen),
		IsKVM:   bool(r.IsKVM),
		IsPVOPS: bool(r.IsPVOPS),
	}
}

// jobResult is the DATA of actions that submit a job.
type jobResult struct {
	JobID  flexInt `json:"JobID"`
	DiskID flexInt `json:"DiskID"`
}

type configResult struct {
	ConfigID flexInt `json:"ConfigID"`
}

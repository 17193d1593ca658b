package output

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/machine"
	"github.com/jbweber/linode-utils/internal/provider"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatLinodes formats a list of linodes as a table.
func (f *TableFormatter) FormatLinodes(linodes []provider.Linode) (string, error) {
	if len(linodes) == 0 {
		return "No linodes found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "ID\tLABEL\tGROUP\tSTATUS\tDISK\tRAM")
	}
	for _, l := range linodes {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d MB\t%d MB\n",
			l.ID, l.Label, dash(l.DisplayGroup), l.Status, l.TotalHD, l.TotalRAM)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatDetails formats a linode followed by tables of its disks and configs.
func (f *TableFormatter) FormatDetails(d machine.Details) (string, error) {
	var buf bytes.Buffer

	linodes, err := f.FormatLinodes([]provider.Linode{d.Linode})
	if err != nil {
		return "", err
	}
	buf.WriteString(linodes)

	buf.WriteString("\nDisks:\n")
	if len(d.Disks) == 0 {
		buf.WriteString("  none\n")
	} else {
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "  ID\tLABEL\tTYPE\tSIZE\tREAD-ONLY")
		}
		for _, disk := range d.Disks {
			_, _ = fmt.Fprintf(w, "  %d\t%s\t%s\t%d MB\t%s\n",
				disk.ID, disk.Label, disk.Type, disk.Size, yesNo(disk.ReadOnly))
		}
		_ = w.Flush()
	}

	buf.WriteString("\nConfigs:\n")
	if len(d.Configs) == 0 {
		buf.WriteString("  none\n")
	} else {
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		if !f.NoHeaders {
			_, _ = fmt.Fprintln(w, "  ID\tLABEL\tKERNEL\tDISKS\tROOT")
		}
		for _, c := range d.Configs {
			_, _ = fmt.Fprintf(w, "  %d\t%s\t%d\t%s\t%d\n",
				c.ID, c.Label, c.KernelID, formatDiskList(c.DiskList), c.RootDeviceNum)
		}
		_ = w.Flush()
	}

	return buf.String(), nil
}

// FormatNode formats a Node's status as a single table row.
func (f *TableFormatter) FormatNode(n *v1alpha1.Node) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tPHASE\tLINODE\tGROUP\tPOWER\tROOT\tSWAP\tCONFIG")
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
		n.Name,
		dash(string(n.Status.Phase)),
		idOrDash(n.Status.LinodeID),
		dash(n.Spec.Group),
		dash(n.Status.PowerState),
		idOrDash(n.Status.RootDiskID),
		idOrDash(n.Status.SwapDiskID),
		idOrDash(n.Status.ConfigID),
	)

	_ = w.Flush()
	return buf.String(), nil
}

// formatDiskList renders the occupied slots of a disk list, e.g. "sda=12,sdb=13".
func formatDiskList(list [provider.MaxDeviceSlots]provider.DiskID) string {
	var parts []string
	for i, id := range list {
		if id == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("sd%c=%d", 'a'+i, id))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func idOrDash(id int) string {
	if id == 0 {
		return "-"
	}
	return strconv.Itoa(id)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

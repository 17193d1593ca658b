// Package naming provides the labeling conventions for resources created on
// a linode: disks, boot configs and the comments attached to them.
//
// Provider labels are limited to 50 characters, so every generated label is
// truncated to MaxLabelLength.
package naming

import (
	"fmt"
	"time"
)

// MaxLabelLength is the longest label the provider accepts.
const MaxLabelLength = 50

// TimestampFormat is the layout of timestamps embedded in labels.
const TimestampFormat = "20060102-150405"

// BootConfigLabel returns the label of a boot config created at now.
// Format: boot-{timestamp} (e.g., "boot-20260101-120000")
func BootConfigLabel(now time.Time) string {
	return "boot-" + now.UTC().Format(TimestampFormat)
}

// BootConfigComment returns the comment attached to a generated boot config.
// It records when and by which run the config was created.
func BootConfigComment(now time.Time, runID string) string {
	comment := fmt.Sprintf("created by linode-utils at %s", now.UTC().Format(time.RFC3339))
	if runID != "" {
		comment += fmt.Sprintf(" (run %s)", runID)
	}
	return comment
}

// RootDiskLabel returns the label for a linode's root disk.
// Format: {linodeLabel}-root (e.g., "web1-root")
func RootDiskLabel(linodeLabel string) string {
	return truncate(linodeLabel+"-root", MaxLabelLength)
}

// SwapDiskLabel returns the label for a linode's swap disk.
// Format: {linodeLabel}-swap (e.g., "web1-swap")
func SwapDiskLabel(linodeLabel string) string {
	return truncate(linodeLabel+"-swap", MaxLabelLength)
}

// truncate cuts s to at most n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

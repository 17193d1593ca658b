// Package status manages Node status fields: the run phase and conditions.
package status

import (
	"time"

	"github.com/jbweber/linode-utils/api/v1alpha1"
)

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// SetCondition adds or updates a condition. LastTransitionTime only moves
// when the status changes.
func SetCondition(n *v1alpha1.Node, condType string, status v1alpha1.ConditionStatus, reason, message string) {
	ts := v1alpha1.Time{Time: now()}

	for i := range n.Status.Conditions {
		existing := &n.Status.Conditions[i]
		if existing.Type != condType {
			continue
		}
		if existing.Status != status {
			existing.LastTransitionTime = ts
		}
		existing.Status = status
		existing.Reason = reason
		existing.Message = message
		existing.ObservedGeneration = n.Generation
		return
	}

	n.Status.Conditions = append(n.Status.Conditions, v1alpha1.Condition{
		Type:               condType,
		Status:             status,
		ObservedGeneration: n.Generation,
		LastTransitionTime: ts,
		Reason:             reason,
		Message:            message,
	})
}

// GetCondition returns a condition by type, or nil if not found.
func GetCondition(n *v1alpha1.Node, condType string) *v1alpha1.Condition {
	for i := range n.Status.Conditions {
		if n.Status.Conditions[i].Type == condType {
			return &n.Status.Conditions[i]
		}
	}
	return nil
}

// IsConditionTrue returns true if the condition exists and has status True.
func IsConditionTrue(n *v1alpha1.Node, condType string) bool {
	cond := GetCondition(n, condType)
	return cond != nil && cond.Status == v1alpha1.ConditionTrue
}

// MarkDisksProvisioned records the root and swap disks.
func MarkDisksProvisioned(n *v1alpha1.Node, rootDiskID, swapDiskID int) {
	n.Status.RootDiskID = rootDiskID
	n.Status.SwapDiskID = swapDiskID
	SetCondition(n, v1alpha1.ConditionDisksProvisioned, v1alpha1.ConditionTrue, "DisksCreated", "root and swap disks exist")
}

// MarkDisksRemoved records that the node's writable disks were deleted.
func MarkDisksRemoved(n *v1alpha1.Node) {
	n.Status.RootDiskID = 0
	SetCondition(n, v1alpha1.ConditionDisksProvisioned, v1alpha1.ConditionFalse, "DisksDeleted", "non-essential disks deleted")
}

// MarkBootConfigured records the boot config.
func MarkBootConfigured(n *v1alpha1.Node, configID int) {
	n.Status.ConfigID = configID
	SetCondition(n, v1alpha1.ConditionBootConfigured, v1alpha1.ConditionTrue, "ConfigCreated", "boot config references root and swap")
}

// MarkBootConfigsRemoved records that all boot configs were deleted.
func MarkBootConfigsRemoved(n *v1alpha1.Node) {
	n.Status.ConfigID = 0
	SetCondition(n, v1alpha1.ConditionBootConfigured, v1alpha1.ConditionFalse, "ConfigsDeleted", "boot configs deleted")
}

// MarkStepFailed sets the condition for a failed step to False and fails the
// node.
func MarkStepFailed(n *v1alpha1.Node, condType, reason string, err error) {
	SetCondition(n, condType, v1alpha1.ConditionFalse, reason, err.Error())
	TransitionToFailed(n, reason, err.Error())
}

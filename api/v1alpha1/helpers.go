package v1alpha1

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// GroupName is the API group for linode-utils documents.
	GroupName = "linode.cofront.xyz"

	// Version is the API version.
	Version = "v1alpha1"

	// NodeKind is the kind string for Node documents.
	NodeKind = "Node"

	// DefaultGroup is the display group a linode must carry to be automated.
	DefaultGroup = "automatable"

	// DefaultKernel selects the newest paravirtualized 32-bit kernel.
	DefaultKernel = `/Latest 2\.6 Paravirt(?!.*x86_64.*)/`

	// DefaultSwapSizeMB is the size of a swap disk created by provisioning.
	DefaultSwapSizeMB = 256
)

// APIVersion returns the full apiVersion string.
func APIVersion() string {
	return GroupName + "/" + Version
}

// NewNode creates a Node with TypeMeta, metadata and spec defaults.
func NewNode(name string) *Node {
	boot := true
	return &Node{
		TypeMeta: TypeMeta{
			APIVersion: APIVersion(),
			Kind:       NodeKind,
		},
		ObjectMeta: ObjectMeta{
			Name:       name,
			UID:        uuid.New().String(),
			Generation: 1,
		},
		Spec: NodeSpec{
			Group:      DefaultGroup,
			Kernel:     DefaultKernel,
			SwapSizeMB: DefaultSwapSizeMB,
			Boot:       &boot,
		},
	}
}

// SetDefaultAPIVersion fills in apiVersion and kind when missing.
func SetDefaultAPIVersion(n *Node) {
	if n.APIVersion == "" {
		n.APIVersion = APIVersion()
	}
	if n.Kind == "" {
		n.Kind = NodeKind
	}
}

// GetGroup returns the safety group with default fallback.
func (n *Node) GetGroup() string {
	if n.Spec.Group == "" {
		return DefaultGroup
	}
	return n.Spec.Group
}

// GetKernel returns the kernel selector with default fallback.
func (n *Node) GetKernel() string {
	if n.Spec.Kernel == "" {
		return DefaultKernel
	}
	return n.Spec.Kernel
}

// GetSwapSizeMB returns the swap size with default fallback.
func (n *Node) GetSwapSizeMB() int {
	if n.Spec.SwapSizeMB <= 0 {
		return DefaultSwapSizeMB
	}
	return n.Spec.SwapSizeMB
}

// ShouldBoot reports whether provisioning ends with a boot. Defaults to true.
func (n *Node) ShouldBoot() bool {
	if n.Spec.Boot == nil {
		return true
	}
	return *n.Spec.Boot
}

// SetPhase sets the phase in status.
func (n *Node) SetPhase(phase NodePhase) {
	n.Status.Phase = phase
}

// GetPhase returns the current phase.
func (n *Node) GetPhase() NodePhase {
	return n.Status.Phase
}

// UpdateObservedGeneration copies metadata.generation into status.
func (n *Node) UpdateObservedGeneration() {
	n.Status.ObservedGeneration = n.Generation
}

// Normalize trims user input. Linode labels are case sensitive, so the name
// is only trimmed; the FQDN is lowercased.
func (n *Node) Normalize() {
	n.Name = strings.TrimSpace(n.Name)
	n.Spec.Group = strings.TrimSpace(n.Spec.Group)
	if n.Spec.CloudInit != nil {
		n.Spec.CloudInit.FQDN = strings.ToLower(strings.TrimSpace(n.Spec.CloudInit.FQDN))
	}
}

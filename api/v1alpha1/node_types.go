package v1alpha1

// Node describes how a linode is provisioned and, once loaded against the
// provider, what was observed about it.
//
// A provision document looks like:
//
//	apiVersion: linode.cofront.xyz/v1alpha1
//	kind: Node
//	metadata:
//	  name: web1
//	spec:
//	  distribution: /^Debian 6/
//	  kernel: /Latest 2\.6 Paravirt(?!.*x86_64.*)/
//	  stackScriptID: 1234
//	  swapSizeMB: 256
//	  cloudInit:
//	    fqdn: web1.example.com
type Node struct {
	TypeMeta `json:",inline" yaml:",inline"`

	// +optional
	ObjectMeta `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Spec NodeSpec `json:"spec" yaml:"spec"`

	// +optional
	Status NodeStatus `json:"status,omitempty" yaml:"status,omitempty"`
}

// NodeSpec is the desired layout of a linode's disks and boot config.
type NodeSpec struct {
	// Group is the display group the linode must carry before anything is
	// changed on it. Defaults to "automatable".
	// +optional
	Group string `json:"group,omitempty" yaml:"group,omitempty"`

	// Distribution selects the template image, either an exact label or a
	// /pattern/.
	Distribution string `json:"distribution" yaml:"distribution"`

	// Kernel selects the boot kernel, either an exact label or a /pattern/.
	// +optional
	Kernel string `json:"kernel,omitempty" yaml:"kernel,omitempty"`

	// StackScriptID is the StackScript run when the root disk is created.
	StackScriptID int `json:"stackScriptID" yaml:"stackScriptID"`

	// StackScriptData answers the StackScript's user-defined fields.
	// +optional
	StackScriptData map[string]string `json:"stackScriptData,omitempty" yaml:"stackScriptData,omitempty"`

	// RootDiskSizeMB is the root disk size. Zero uses all remaining space.
	// +optional
	RootDiskSizeMB int `json:"rootDiskSizeMB,omitempty" yaml:"rootDiskSizeMB,omitempty"`

	// SwapSizeMB is the size of the swap disk created when none exists.
	// +optional
	SwapSizeMB int `json:"swapSizeMB,omitempty" yaml:"swapSizeMB,omitempty"`

	// RootPassword is generated when empty.
	// +optional
	RootPassword string `json:"rootPassword,omitempty" yaml:"rootPassword,omitempty"`

	// Params are provider-specific disk creation parameters passed through
	// unchanged. Empty values are dropped.
	// +optional
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`

	// CloudInit is rendered to user data and handed to the StackScript.
	// +optional
	CloudInit *CloudInitSpec `json:"cloudInit,omitempty" yaml:"cloudInit,omitempty"`

	// Boot the new config once provisioning finished. Defaults to true.
	// +optional
	Boot *bool `json:"boot,omitempty" yaml:"boot,omitempty"`
}

// CloudInitSpec is the cloud-init configuration of a node.
type CloudInitSpec struct {
	// FQDN sets the hostname and fqdn.
	// +optional
	FQDN string `json:"fqdn,omitempty" yaml:"fqdn,omitempty"`

	// SSHAuthorizedKeys are added next to the operator's key.
	// +optional
	SSHAuthorizedKeys []string `json:"sshAuthorizedKeys,omitempty" yaml:"sshAuthorizedKeys,omitempty"`

	// PasswordHash for root. Generate with: mkpasswd --method=SHA-512
	// +optional
	PasswordHash string `json:"passwordHash,omitempty" yaml:"passwordHash,omitempty"`

	// SSHPasswordAuth enables SSH password authentication.
	// +optional
	SSHPasswordAuth bool `json:"sshPasswordAuth,omitempty" yaml:"sshPasswordAuth,omitempty"`

	// Packages are installed on first boot.
	// +optional
	Packages []string `json:"packages,omitempty" yaml:"packages,omitempty"`
}

// NodeStatus is what the tool observed about a node.
type NodeStatus struct {
	// +optional
	Phase NodePhase `json:"phase,omitempty" yaml:"phase,omitempty"`

	// +optional
	// +listType=map
	// +listMapKey=type
	Conditions []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// LinodeID is the provider's identifier for the node.
	// +optional
	LinodeID int `json:"linodeID,omitempty" yaml:"linodeID,omitempty"`

	// DisplayGroup as reported by the provider.
	// +optional
	DisplayGroup string `json:"displayGroup,omitempty" yaml:"displayGroup,omitempty"`

	// PowerState as reported by the provider.
	// +optional
	PowerState string `json:"powerState,omitempty" yaml:"powerState,omitempty"`

	// RootDiskID, SwapDiskID and ConfigID are set by provisioning.
	// +optional
	RootDiskID int `json:"rootDiskID,omitempty" yaml:"rootDiskID,omitempty"`
	// +optional
	SwapDiskID int `json:"swapDiskID,omitempty" yaml:"swapDiskID,omitempty"`
	// +optional
	ConfigID int `json:"configID,omitempty" yaml:"configID,omitempty"`

	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty" yaml:"observedGeneration,omitempty"`
}

// NodePhase is the lifecycle phase of a node within one run.
type NodePhase string

const (
	// NodePhaseLoaded means the node was resolved and passed the group check.
	NodePhaseLoaded NodePhase = "Loaded"

	// NodePhaseShuttingDown means a shutdown job is in flight.
	NodePhaseShuttingDown NodePhase = "ShuttingDown"

	// NodePhaseShutdown means the node is powered off.
	NodePhaseShutdown NodePhase = "Shutdown"

	// NodePhaseBooting means a boot job is in flight.
	NodePhaseBooting NodePhase = "Booting"

	// NodePhaseBooted means the node booted a config.
	NodePhaseBooted NodePhase = "Booted"

	// NodePhaseFailed means a step failed and the node needs attention.
	NodePhaseFailed NodePhase = "Failed"
)

// Condition types for Node resources.
const (
	// ConditionReady is True once the node booted a config.
	ConditionReady = "Ready"

	// ConditionDisksProvisioned is True once root and swap disks exist.
	ConditionDisksProvisioned = "DisksProvisioned"

	// ConditionBootConfigured is True once a boot config references the disks.
	ConditionBootConfigured = "BootConfigured"
)

// DeepCopy creates a deep copy of Node.
func (in *Node) DeepCopy() *Node {
	if in == nil {
		return nil
	}
	out := new(Node)
	out.TypeMeta = in.TypeMeta
	out.ObjectMeta = *in.ObjectMeta.DeepCopy()
	out.Spec = *in.Spec.DeepCopy()
	out.Status = *in.Status.DeepCopy()
	return out
}

// DeepCopy creates a deep copy of NodeSpec.
func (in *NodeSpec) DeepCopy() *NodeSpec {
	if in == nil {
		return nil
	}
	out := new(NodeSpec)
	*out = *in
	out.StackScriptData = copyStringMap(in.StackScriptData)
	out.Params = copyStringMap(in.Params)
	if in.CloudInit != nil {
		out.CloudInit = in.CloudInit.DeepCopy()
	}
	if in.Boot != nil {
		boot := *in.Boot
		out.Boot = &boot
	}
	return out
}

// DeepCopy creates a deep copy of CloudInitSpec.
func (in *CloudInitSpec) DeepCopy() *CloudInitSpec {
	if in == nil {
		return nil
	}
	out := new(CloudInitSpec)
	*out = *in
	if in.SSHAuthorizedKeys != nil {
		out.SSHAuthorizedKeys = append([]string(nil), in.SSHAuthorizedKeys...)
	}
	if in.Packages != nil {
		out.Packages = append([]string(nil), in.Packages...)
	}
	return out
}

// DeepCopy creates a deep copy of NodeStatus.
func (in *NodeStatus) DeepCopy() *NodeStatus {
	if in == nil {
		return nil
	}
	out := new(NodeStatus)
	*out = *in
	if in.Conditions != nil {
		out.Conditions = append([]Condition(nil), in.Conditions...)
	}
	return out
}

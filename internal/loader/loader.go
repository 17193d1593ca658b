// Package loader provides functions for loading Node documents from YAML
// files.
package loader

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/catalog"
	"github.com/jbweber/linode-utils/internal/config"
)

// fqdnPattern follows RFC 952/1123: dot separated labels of 1-63 alphanumeric
// characters and hyphens, with at least one dot.
var fqdnPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

// LoadFromFile loads a Node from a YAML file.
// The file must be in the linode.cofront.xyz/v1alpha1 format.
func LoadFromFile(path string) (*v1alpha1.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return LoadFromYAML(data)
}

// LoadFromYAML loads a Node from YAML bytes.
// The YAML must be in the linode.cofront.xyz/v1alpha1 format.
func LoadFromYAML(data []byte) (*v1alpha1.Node, error) {
	var n v1alpha1.Node
	if err := yaml.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if n.APIVersion == "" {
		return nil, fmt.Errorf("missing required field: apiVersion")
	}
	if n.Kind == "" {
		return nil, fmt.Errorf("missing required field: kind")
	}
	if n.APIVersion != v1alpha1.APIVersion() {
		return nil, fmt.Errorf("unsupported apiVersion: %s (expected: %s)", n.APIVersion, v1alpha1.APIVersion())
	}
	if n.Kind != v1alpha1.NodeKind {
		return nil, fmt.Errorf("unsupported kind: %s (expected: %s)", n.Kind, v1alpha1.NodeKind)
	}

	applyDefaults(&n)

	if err := validateSpec(&n); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &n, nil
}

// SaveToFile saves a Node, status included, to a YAML file.
func SaveToFile(n *v1alpha1.Node, path string) error {
	v1alpha1.SetDefaultAPIVersion(n)

	data, err := yaml.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal node to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

// applyDefaults sets default values for optional fields. Documents are
// loaded fresh for every run, so any status in the file is discarded.
// An empty group is kept so the operator's configured group applies.
func applyDefaults(n *v1alpha1.Node) {
	n.Normalize()

	if n.Spec.Kernel == "" {
		n.Spec.Kernel = v1alpha1.DefaultKernel
	}
	if n.Spec.SwapSizeMB == 0 {
		n.Spec.SwapSizeMB = v1alpha1.DefaultSwapSizeMB
	}
	if n.Spec.Boot == nil {
		boot := true
		n.Spec.Boot = &boot
	}
	if n.Generation == 0 {
		n.Generation = 1
	}

	n.Status = v1alpha1.NodeStatus{}
}

// validateSpec validates the Node spec for required fields and consistency.
func validateSpec(n *v1alpha1.Node) error {
	if n.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}

	if n.Spec.Distribution == "" {
		return fmt.Errorf("spec.distribution is required")
	}
	if _, err := catalog.ParseSelector(n.Spec.Distribution); err != nil {
		return fmt.Errorf("spec.distribution: %w", err)
	}
	if _, err := catalog.ParseSelector(n.Spec.Kernel); err != nil {
		return fmt.Errorf("spec.kernel: %w", err)
	}

	if n.Spec.StackScriptID <= 0 {
		return fmt.Errorf("spec.stackScriptID must be greater than 0")
	}
	if n.Spec.RootDiskSizeMB < 0 {
		return fmt.Errorf("spec.rootDiskSizeMB must not be negative")
	}
	if n.Spec.SwapSizeMB < 0 {
		return fmt.Errorf("spec.swapSizeMB must not be negative")
	}

	if ci := n.Spec.CloudInit; ci != nil {
		if ci.FQDN != "" && !fqdnPattern.MatchString(ci.FQDN) {
			return fmt.Errorf("spec.cloudInit.fqdn must be a valid hostname with domain (e.g., host.example.com), got %q", ci.FQDN)
		}
		for i, key := range ci.SSHAuthorizedKeys {
			if err := config.ValidatePublicKey(key); err != nil {
				return fmt.Errorf("spec.cloudInit.sshAuthorizedKeys[%d]: %w", i, err)
			}
		}
		if ci.PasswordHash != "" && (len(ci.PasswordHash) < 10 || ci.PasswordHash[0] != '$') {
			return fmt.Errorf("spec.cloudInit.passwordHash must be a valid crypt hash (should start with $)")
		}
	}

	return nil
}

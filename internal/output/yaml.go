package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/machine"
	"github.com/jbweber/linode-utils/internal/provider"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatLinodes formats linodes as a YAML sequence.
func (f *YAMLFormatter) FormatLinodes(linodes []provider.Linode) (string, error) {
	if len(linodes) == 0 {
		return "[]\n", nil
	}
	return marshalYAML(linodes, "linodes")
}

// FormatDetails formats a linode with its disks and configs as one YAML
// document.
func (f *YAMLFormatter) FormatDetails(d machine.Details) (string, error) {
	return marshalYAML(d, "linode "+d.Linode.Label)
}

// FormatNode formats a Node as YAML. The output loads again with the
// loader package.
func (f *YAMLFormatter) FormatNode(n *v1alpha1.Node) (string, error) {
	v1alpha1.SetDefaultAPIVersion(n)
	return marshalYAML(n, "node "+n.Name)
}

func marshalYAML(v interface{}, what string) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to YAML: %w", what, err)
	}
	return string(data), nil
}

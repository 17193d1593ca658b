package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/machine"
	"github.com/jbweber/linode-utils/internal/provider"
)

// JSONFormatter formats resources as JSON.
type JSONFormatter struct{}

// FormatLinodes formats linodes as a JSON array.
func (f *JSONFormatter) FormatLinodes(linodes []provider.Linode) (string, error) {
	if len(linodes) == 0 {
		return "[]\n", nil
	}
	return marshalJSON(linodes, "linodes")
}

// FormatDetails formats a linode with its disks and configs as one JSON object.
func (f *JSONFormatter) FormatDetails(d machine.Details) (string, error) {
	return marshalJSON(d, "linode "+d.Linode.Label)
}

// FormatNode formats a Node as JSON.
func (f *JSONFormatter) FormatNode(n *v1alpha1.Node) (string, error) {
	v1alpha1.SetDefaultAPIVersion(n)
	return marshalJSON(n, "node "+n.Name)
}

func marshalJSON(v interface{}, what string) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s to JSON: %w", what, err)
	}
	return string(data) + "\n", nil
}

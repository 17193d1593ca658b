// Package cloudinit renders cloud-init user data for a Node.
//
// The provider has no seed image: user data is handed to the StackScript as
// a base64 encoded field, and the script writes it where cloud-init finds
// it on first boot.
//
// See https://cloudinit.readthedocs.io/en/latest/explanation/format.html#cloud-config-data
package cloudinit

import (
	"encoding/base64"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/linode-utils/api/v1alpha1"
)

// UserDataField is the StackScript field that carries the encoded user data.
const UserDataField = "user_data"

// UserData represents the cloud-config user-data structure.
// This is marshaled to YAML and prefixed with "#cloud-config" header.
type UserData struct {
	Hostname          string    `yaml:"hostname"`
	FQDN              string    `yaml:"fqdn"`
	SSHAuthorizedKeys []string  `yaml:"ssh_authorized_keys,omitempty"`
	Chpasswd          *Chpasswd `yaml:"chpasswd,omitempty"`
	SSHPasswordAuth   bool      `yaml:"ssh_pwauth"`
	PackageUpdate     bool      `yaml:"package_update,omitempty"`
	Packages          []string  `yaml:"packages,omitempty"`
	Output            *Output   `yaml:"output,omitempty"`
}

// Chpasswd configures user password settings.
type Chpasswd struct {
	Expire bool   `yaml:"expire"`
	List   string `yaml:"list"` // username:hash
}

// Output configures cloud-init output logging.
type Output struct {
	All string `yaml:"all"`
}

// GenerateUserData generates the user-data content for a node. The
// operator's key, when set, is authorized ahead of the node's own keys.
//
// Returns the complete user-data content including the "#cloud-config" header.
func GenerateUserData(n *v1alpha1.Node, operatorKey string) (string, error) {
	if n == nil {
		return "", fmt.Errorf("node cannot be nil")
	}

	// Hostname is everything before the first dot of the FQDN.
	hostname := n.Name
	fqdn := n.Name
	ci := n.Spec.CloudInit
	if ci != nil && ci.FQDN != "" {
		fqdn = ci.FQDN
		hostname = strings.SplitN(fqdn, ".", 2)[0]
	}

	userData := UserData{
		Hostname: hostname,
		FQDN:     fqdn,
		Output: &Output{
			All: "| tee -a /var/log/cloud-init-output.log",
		},
	}

	if key := strings.TrimSpace(operatorKey); key != "" {
		userData.SSHAuthorizedKeys = append(userData.SSHAuthorizedKeys, key)
	}

	if ci != nil {
		for _, key := range ci.SSHAuthorizedKeys {
			if !contains(userData.SSHAuthorizedKeys, key) {
				userData.SSHAuthorizedKeys = append(userData.SSHAuthorizedKeys, key)
			}
		}

		if ci.PasswordHash != "" {
			userData.Chpasswd = &Chpasswd{
				Expire: false,
				List:   fmt.Sprintf("root:%s", ci.PasswordHash),
			}
		}
		userData.SSHPasswordAuth = ci.SSHPasswordAuth

		if len(ci.Packages) > 0 {
			userData.PackageUpdate = true
			userData.Packages = ci.Packages
		}
	}

	yamlBytes, err := yaml.Marshal(&userData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal user-data to YAML: %w", err)
	}

	return "#cloud-config\n" + string(yamlBytes), nil
}

// EncodedUserData renders the user data and base64 encodes it for the
// StackScript field.
func EncodedUserData(n *v1alpha1.Node, operatorKey string) (string, error) {
	content, err := GenerateUserData(n, operatorKey)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(content)), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Package config loads the operator settings a run needs: the API key, the
// operator's public SSH key and defaults for the safety group and job
// polling.
//
// Settings are read once at startup. The API key comes from a java
// properties file (~/.linoderc by default) and can be overridden by the
// LINODE_API_KEY environment variable.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/magiconair/properties"
	"golang.org/x/crypto/ssh"

	"github.com/jbweber/linode-utils/api/v1alpha1"
	"github.com/jbweber/linode-utils/internal/job"
)

const (
	// EnvAPIKey overrides the api_key property when set.
	EnvAPIKey = "LINODE_API_KEY"

	// DefaultAPIURL is the provider endpoint.
	DefaultAPIURL = "https://api.linode.com/"

	// DefaultTimeout bounds a single job wait from the command line.
	DefaultTimeout = 15 * time.Minute

	// Property keys read from the linoderc file.
	keyAPIKey = "api_key"
	keyAPIURL = "api_url"
	keyGroup  = "group"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("no API key configured")

// Settings holds the resolved operator settings.
type Settings struct {
	APIKey string
	APIURL string

	// SSHPublicKey is the operator's authorized_keys line. Empty when no
	// key file exists.
	SSHPublicKey string

	SafetyGroup  string
	PollInterval time.Duration
	Timeout      time.Duration
}

// LoadOptions names where settings are read from. Empty paths use the
// defaults under the user's home directory.
type LoadOptions struct {
	LinodeRC   string
	SSHKeyPath string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// DefaultLinodeRC returns ~/.linoderc.
func DefaultLinodeRC() string {
	return homePath(".linoderc")
}

// DefaultSSHKeyPath returns ~/.ssh/id_rsa.pub.
func DefaultSSHKeyPath() string {
	return homePath(filepath.Join(".ssh", "id_rsa.pub"))
}

func homePath(rel string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return rel
	}
	return filepath.Join(home, rel)
}

// Load reads the linoderc file and the public key and applies defaults.
// A missing linoderc is not an error when the environment provides the key.
func Load(opts LoadOptions) (*Settings, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	rcPath := opts.LinodeRC
	if rcPath == "" {
		rcPath = DefaultLinodeRC()
	}
	keyPath := opts.SSHKeyPath
	if keyPath == "" {
		keyPath = DefaultSSHKeyPath()
	}

	s := &Settings{
		APIURL:       DefaultAPIURL,
		SafetyGroup:  v1alpha1.DefaultGroup,
		PollInterval: job.DefaultInterval,
		Timeout:      DefaultTimeout,
	}

	props, err := readProperties(rcPath)
	if err != nil {
		return nil, err
	}
	if props != nil {
		s.APIKey = props.GetString(keyAPIKey, "")
		s.APIURL = props.GetString(keyAPIURL, s.APIURL)
		s.SafetyGroup = props.GetString(keyGroup, s.SafetyGroup)
	}
	if env := strings.TrimSpace(getenv(EnvAPIKey)); env != "" {
		s.APIKey = env
	}

	key, err := ReadPublicKey(keyPath)
	if err != nil {
		return nil, err
	}
	s.SSHPublicKey = key

	return s, nil
}

// readProperties loads a properties file. A missing file yields nil.
func readProperties(path string) (*properties.Properties, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return props, nil
}

// ReadPublicKey reads and validates an authorized_keys line. A missing file
// yields an empty key.
func ReadPublicKey(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read public key: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if err := ValidatePublicKey(key); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// ValidatePublicKey checks that key parses as an authorized_keys line.
func ValidatePublicKey(key string) error {
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
		return fmt.Errorf("not a valid SSH public key: %w", err)
	}
	return nil
}

// Validate checks the settings needed to talk to the provider.
func (s *Settings) Validate() error {
	if s.APIKey == "" {
		return fmt.Errorf("%w: set %s or api_key in the linoderc file", ErrMissingAPIKey, EnvAPIKey)
	}
	if s.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be > 0, got %s", s.PollInterval)
	}
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", s.Timeout)
	}
	return nil
}

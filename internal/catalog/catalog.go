// Package catalog resolves distribution templates and kernels by label.
//
// A Selector is either an exact label or a pattern. Patterns use Perl-style
// syntax with lookaround, so selectors such as
//
//	/Latest 2\.6 Paravirt(?!.*x86_64.*)/
//
// work as written. When several catalog entries match, the first one in
// provider order wins.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"

	"github.com/jbweber/linode-utils/internal/provider"
)

// matchTimeout bounds a single pattern evaluation.
const matchTimeout = time.Second

var (
	// ErrTemplateNotFound is returned when no distribution matches a selector.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrKernelNotFound is returned when no kernel matches a selector.
	ErrKernelNotFound = errors.New("kernel not found")

	// ErrEmptySelector is returned when resolving with a zero Selector.
	ErrEmptySelector = errors.New("empty selector")
)

// Selector picks catalog entries by label.
type Selector struct {
	exact   string
	pattern *regexp2.Regexp
}

// Exact returns a selector matching one label verbatim.
func Exact(label string) Selector {
	return Selector{exact: label}
}

// Pattern compiles expr into a pattern selector.
func Pattern(expr string) (Selector, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return Selector{}, fmt.Errorf("invalid selector pattern %q: %w", expr, err)
	}
	re.MatchTimeout = matchTimeout
	return Selector{pattern: re}, nil
}

// ParseSelector parses the textual form of a selector. Text wrapped in
// slashes is a pattern, anything else is an exact label.
func ParseSelector(s string) (Selector, error) {
	if len(s) >= 2 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		return Pattern(s[1 : len(s)-1])
	}
	return Exact(s), nil
}

// IsZero reports whether the selector matches nothing.
func (s Selector) IsZero() bool {
	return s.exact == "" && s.pattern == nil
}

// IsPattern reports whether the selector is a pattern.
func (s Selector) IsPattern() bool {
	return s.pattern != nil
}

// String returns the textual form accepted by ParseSelector.
func (s Selector) String() string {
	if s.pattern != nil {
		return "/" + s.pattern.String() + "/"
	}
	return s.exact
}

// Match reports whether label satisfies the selector.
func (s Selector) Match(label string) (bool, error) {
	if s.pattern == nil {
		return s.exact != "" && label == s.exact, nil
	}
	ok, err := s.pattern.MatchString(label)
	if err != nil {
		return false, fmt.Errorf("failed to match %q against %s: %w", label, s, err)
	}
	return ok, nil
}

// UnmarshalYAML decodes a selector from a scalar.
func (s *Selector) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return err
	}
	parsed, err := ParseSelector(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalYAML encodes a selector in its textual form.
func (s Selector) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// DistributionLister lists the provider's distribution templates.
type DistributionLister interface {
	ListDistributions(ctx context.Context) ([]provider.Distribution, error)
}

// KernelLister lists the provider's kernels.
type KernelLister interface {
	ListKernels(ctx context.Context) ([]provider.Kernel, error)
}

// ResolveDistribution returns the first distribution whose label matches sel.
func ResolveDistribution(ctx context.Context, client DistributionLister, sel Selector) (provider.Distribution, error) {
	if sel.IsZero() {
		return provider.Distribution{}, ErrEmptySelector
	}
	dists, err := client.ListDistributions(ctx)
	if err != nil {
		return provider.Distribution{}, fmt.Errorf("failed to list distributions: %w", err)
	}
	for _, d := range dists {
		ok, err := sel.Match(d.Label)
		if err != nil {
			return provider.Distribution{}, err
		}
		if ok {
			return d, nil
		}
	}
	return provider.Distribution{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, sel)
}

// ResolveKernel returns the first kernel whose label matches sel.
func ResolveKernel(ctx context.Context, client KernelLister, sel Selector) (provider.Kernel, error) {
	if sel.IsZero() {
		return provider.Kernel{}, ErrEmptySelector
	}
	kernels, err := client.ListKernels(ctx)
	if err != nil {
		return provider.Kernel{}, fmt.Errorf("failed to list kernels: %w", err)
	}
	for _, k := range kernels {
		ok, err := sel.Match(k.Label)
		if err != nil {
			return provider.Kernel{}, err
		}
		if ok {
			return k, nil
		}
	}
	return provider.Kernel{}, fmt.Errorf("%w: %s", ErrKernelNotFound, sel)
}

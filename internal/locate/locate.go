// Package locate resolves linodes by label or ID.
package locate

import (
	"context"
	"errors"
	"fmt"

	"github.com/jbweber/linode-utils/internal/provider"
)

var (
	// ErrNotFound is returned when no linode matches.
	ErrNotFound = errors.New("linode not found")

	// ErrMultipleMatches is returned when the provider reports more than one
	// linode for a single ID.
	ErrMultipleMatches = errors.New("multiple linodes match")
)

// Lister lists linodes. An id of zero lists all of them.
type Lister interface {
	ListLinodes(ctx context.Context, id provider.LinodeID) ([]provider.Linode, error)
}

// FindByLabel scans the full linode listing and returns the first linode
// whose label equals label.
func FindByLabel(ctx context.Context, client Lister, label string) (provider.Linode, error) {
	linodes, err := client.ListLinodes(ctx, 0)
	if err != nil {
		return provider.Linode{}, fmt.Errorf("failed to list linodes: %w", err)
	}
	for _, l := range linodes {
		if l.Label == label {
			return l, nil
		}
	}
	return provider.Linode{}, fmt.Errorf("%w: label %q", ErrNotFound, label)
}

// FindByID fetches one linode. More than one result is an inconsistency in
// the provider data and is reported, never resolved by picking one.
func FindByID(ctx context.Context, client Lister, id provider.LinodeID) (provider.Linode, error) {
	linodes, err := client.ListLinodes(ctx, id)
	if err != nil {
		return provider.Linode{}, fmt.Errorf("failed to list linode %d: %w", id, err)
	}
	switch len(linodes) {
	case 0:
		return provider.Linode{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	case 1:
		return linodes[0], nil
	default:
		return provider.Linode{}, fmt.Errorf("%w: id %d returned %d records", ErrMultipleMatches, id, len(linodes))
	}
}

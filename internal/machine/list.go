package machine

import (
	"context"
	"fmt"
	"sort"

	"github.com/jbweber/linode-utils/internal/locate"
	"github.com/jbweber/linode-utils/internal/provider"
)

// Details is a read-only view of one linode and its disks and configs.
type Details struct {
	Linode  provider.Linode   `json:"linode" yaml:"linode"`
	Disks   []provider.Disk   `json:"disks" yaml:"disks"`
	Configs []provider.Config `json:"configs" yaml:"configs"`
}

// inspectAPI is what Inspect reads from.
type inspectAPI interface {
	locate.Lister
	ListDisks(ctx context.Context, id provider.LinodeID) ([]provider.Disk, error)
	ListConfigs(ctx context.Context, id provider.LinodeID) ([]provider.Config, error)
}

// List returns every linode, sorted by label. A non-empty group keeps only
// linodes in that display group.
func List(ctx context.Context, client locate.Lister, group string) ([]provider.Linode, error) {
	all, err := client.ListLinodes(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list linodes: %w", err)
	}

	linodes := make([]provider.Linode, 0, len(all))
	for _, l := range all {
		if group != "" && l.DisplayGroup != group {
			continue
		}
		linodes = append(linodes, l)
	}

	sort.SliceStable(linodes, func(i, j int) bool {
		return linodes[i].Label < linodes[j].Label
	})
	return linodes, nil
}

// Inspect loads a linode by label together with its disks and configs. It
// makes no state-changing call and does not check the safety group.
func Inspect(ctx context.Context, client inspectAPI, label string) (Details, error) {
	l, err := locate.FindByLabel(ctx, client, label)
	if err != nil {
		return Details{}, err
	}

	disks, err := client.ListDisks(ctx, l.ID)
	if err != nil {
		return Details{}, fmt.Errorf("failed to list disks of linode %d: %w", l.ID, err)
	}
	configs, err := client.ListConfigs(ctx, l.ID)
	if err != nil {
		return Details{}, fmt.Errorf("failed to list configs of linode %d: %w", l.ID, err)
	}

	return Details{Linode: l, Disks: disks, Configs: configs}, nil
}

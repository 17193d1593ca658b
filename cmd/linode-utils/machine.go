package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/linode-utils/internal/cloudinit"
	"github.com/jbweber/linode-utils/internal/loader"
	"github.com/jbweber/linode-utils/internal/machine"
)

var (
	bootWait         bool
	bootConfigLabel  string
	deprovisionGroup string
	provisionGroup   string
	provisionStatus  string
)

var bootCmd = &cobra.Command{
	Use:   "boot <name>",
	Short: "Boot a linode",
	Long: `Boot a linode with its first boot config, or the config named by --config.

Without --wait the boot job is submitted and its ID printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		m, err := machine.New(ctx, s.client, args[0], s.machineOptions("", nil))
		if err != nil {
			return fmt.Errorf("failed to load linode: %w", err)
		}

		configID, jobID, err := machine.BootFirstConfig(ctx, m, bootConfigLabel, bootWait)
		if err != nil {
			return fmt.Errorf("failed to boot %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		if bootWait {
			printf(out, "✓ %s booted with config %d\n", args[0], configID)
			return nil
		}
		printf(out, "Boot job %d submitted for %s (config %d)\n", jobID, args[0], configID)
		return nil
	},
}

var shutdownCmd = &cobra.Command{
	Use:   "shutdown <name>",
	Short: "Shut down a linode",
	Long:  `Shut down a linode and wait for the shutdown job to finish.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		m, err := machine.New(ctx, s.client, args[0], s.machineOptions("", nil))
		if err != nil {
			return fmt.Errorf("failed to load linode: %w", err)
		}
		if err := m.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shut down %s: %w", args[0], err)
		}

		printf(cmd.OutOrStdout(), "✓ %s shut down\n", args[0])
		return nil
	},
}

var deprovisionCmd = &cobra.Command{
	Use:   "deprovision <name>",
	Short: "Tear down a linode's disks and boot configs",
	Long: `Deprovision a linode by label.

This will:
- Shut the linode down
- Delete every boot config
- Delete every writable disk except swap

The linode itself is kept, ready for the next provision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		m, err := machine.New(ctx, s.client, args[0], s.machineOptions(deprovisionGroup, nil))
		if err != nil {
			return fmt.Errorf("failed to load linode: %w", err)
		}
		if err := machine.Deprovision(ctx, m); err != nil {
			return fmt.Errorf("failed to deprovision %s: %w", args[0], err)
		}

		printf(cmd.OutOrStdout(), "✓ %s deprovisioned\n", args[0])
		return nil
	},
}

var provisionCmd = &cobra.Command{
	Use:   "provision <name> <node.yaml>",
	Short: "Provision a linode from a Node document",
	Long: `Provision a linode from a YAML Node document.

The document names the distribution, kernel, StackScript and disk sizes.
A root disk is created from the distribution, a swap disk is created unless
one exists, and a boot config is created for both. The linode is booted
unless spec.boot is false.

Example:
  linode-utils provision web1 web1.yaml`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, path := args[0], args[1]

		node, err := loader.LoadFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		if node.Name != name {
			return fmt.Errorf("document %s describes %q, not %q", path, node.Name, name)
		}

		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		spec, err := machine.SpecFromNode(node)
		if err != nil {
			return err
		}
		spec.RootSSHKey = s.settings.SSHPublicKey
		if node.Spec.CloudInit != nil {
			userData, err := cloudinit.EncodedUserData(node, s.settings.SSHPublicKey)
			if err != nil {
				return fmt.Errorf("failed to render user data: %w", err)
			}
			if spec.UDFResponses == nil {
				spec.UDFResponses = map[string]any{}
			}
			spec.UDFResponses[cloudinit.UserDataField] = userData
		}

		ctx := cmd.Context()
		m, err := machine.New(ctx, s.client, name, s.machineOptions(provisionGroup, node))
		if err != nil {
			return fmt.Errorf("failed to load linode: %w", err)
		}

		result, provErr := machine.Provision(ctx, m, spec)
		if provisionStatus != "" {
			if err := loader.SaveToFile(m.Node(), provisionStatus); err != nil {
				s.log.WithField("err", err).Warn("failed to write status file")
			}
		}
		if provErr != nil {
			return fmt.Errorf("failed to provision %s: %w", name, provErr)
		}

		printf(cmd.OutOrStdout(), "✓ %s provisioned (root disk %d, swap disk %d, config %d)\n",
			name, result.RootDiskID, result.SwapDiskID, result.ConfigID)
		return nil
	},
}

func init() {
	bootCmd.Flags().BoolVar(&bootWait, "wait", false, "Wait for the boot job to finish")
	bootCmd.Flags().StringVar(&bootConfigLabel, "config", "", "Label of the boot config to use (default: first config)")

	deprovisionCmd.Flags().StringVar(&deprovisionGroup, "group", "", "Safety group the linode must carry")

	provisionCmd.Flags().StringVar(&provisionGroup, "group", "", "Safety group the linode must carry (default: the document's group)")
	provisionCmd.Flags().StringVar(&provisionStatus, "status-file", "", "Write the Node document with its status to this file")
}

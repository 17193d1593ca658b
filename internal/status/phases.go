package status

import (
	"fmt"

	"github.com/jbweber/linode-utils/api/v1alpha1"
)

// TransitionToShuttingDown is called when a shutdown job is submitted.
func TransitionToShuttingDown(n *v1alpha1.Node) error {
	phase := n.GetPhase()
	if phase != v1alpha1.NodePhaseLoaded && phase != v1alpha1.NodePhaseBooted && phase != v1alpha1.NodePhaseShutdown {
		return fmt.Errorf("cannot transition to ShuttingDown from phase %s", phase)
	}

	n.SetPhase(v1alpha1.NodePhaseShuttingDown)
	SetCondition(n, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "ShuttingDown", "shutdown job submitted")
	return nil
}

// TransitionToShutdown is called when the shutdown job succeeded.
func TransitionToShutdown(n *v1alpha1.Node) error {
	if n.GetPhase() != v1alpha1.NodePhaseShuttingDown {
		return fmt.Errorf("cannot transition to Shutdown from phase %s", n.GetPhase())
	}

	n.SetPhase(v1alpha1.NodePhaseShutdown)
	SetCondition(n, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Shutdown", "node is powered off")
	return nil
}

// TransitionToBooting is called when a boot job is submitted.
func TransitionToBooting(n *v1alpha1.Node) error {
	phase := n.GetPhase()
	if phase != v1alpha1.NodePhaseLoaded && phase != v1alpha1.NodePhaseShutdown {
		return fmt.Errorf("cannot transition to Booting from phase %s", phase)
	}

	n.SetPhase(v1alpha1.NodePhaseBooting)
	SetCondition(n, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, "Booting", "boot job submitted")
	return nil
}

// TransitionToBooted is called when the boot job succeeded.
func TransitionToBooted(n *v1alpha1.Node) error {
	if n.GetPhase() != v1alpha1.NodePhaseBooting {
		return fmt.Errorf("cannot transition to Booted from phase %s", n.GetPhase())
	}

	n.SetPhase(v1alpha1.NodePhaseBooted)
	SetCondition(n, v1alpha1.ConditionReady, v1alpha1.ConditionTrue, "Booted", "node booted its config")
	n.UpdateObservedGeneration()
	return nil
}

// TransitionToFailed can happen from any phase.
func TransitionToFailed(n *v1alpha1.Node, reason, message string) {
	n.SetPhase(v1alpha1.NodePhaseFailed)
	SetCondition(n, v1alpha1.ConditionReady, v1alpha1.ConditionFalse, reason, message)
}

// IsTransitioning returns true while a job is in flight.
func IsTransitioning(phase v1alpha1.NodePhase) bool {
	return phase == v1alpha1.NodePhaseShuttingDown || phase == v1alpha1.NodePhaseBooting
}

// IsRunning returns true if the node booted in this run.
func IsRunning(phase v1alpha1.NodePhase) bool {
	return phase == v1alpha1.NodePhaseBooted
}

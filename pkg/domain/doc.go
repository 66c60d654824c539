/*
Package domain contains the core domain models for the Stagehand transition engine.

It defines the authored scene entries, the phases of a transition, the machine states
of the orchestrator and the lifecycle events emitted along the way. This package is kept
pure and free of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - SceneEntry: An authorable transition target (identifier + ordered content units).
  - BlendPhase / SwitchPhase: The checkpoints around the transition effect and the unit switch.
  - MachineState: The linear state of the orchestrator while a transition is in flight.
  - TransitionRequest: The ephemeral description of one transition.
  - Snapshot: The durable record of a committed state (used for resume).
*/
package domain

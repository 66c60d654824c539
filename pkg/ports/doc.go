/*
Package ports defines the driven ports (interfaces) of the Stagehand engine.

These interfaces decouple the transition orchestrator from the host application, allowing
the same core to drive a real content loader, the simulated host of the memory adapter,
or a test spy.

# Key Interfaces

  - HostLoader: loads and unloads content units and reports their progress through UnitHandle.
  - TransitionEffect: the optional visual blend shown while units are swapped.
  - StateStore: persists the last committed state so a host can resume after a restart.
  - SceneSource: supplies scene entries (e.g. from a Loam directory or a settings file).
  - EventPublisher: forwards lifecycle events to an external bus.
*/
package ports

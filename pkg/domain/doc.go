/*
Package domain contains the core types shared by the teller workflow engine.

It is kept pure: no I/O, no persistence, no logging.

# Key Entities

  - State: the record flowing through a workflow (fields, message log, signals).
  - Update: the partial state a node returns, merged by overwrite and append rules.
  - Node: a named computation from State to Update.
  - Step: the (node, update) pair published to observers after each node runs.
  - LifecycleHooks: callbacks fired by the engine around nodes and runs.
*/
package domain

// Package banking is the mocked core-banking collaborator used by the
// assistants: customer profiles, TFSA contributions and e-Transfer limits.
//
// Data lives in a ports.AccountStore behind an accounts.Manager, so every
// mutation is serialized per customer and survives restarts when a durable
// store is configured.
package banking

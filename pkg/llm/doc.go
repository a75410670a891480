// Package llm provides language model clients used by the assistant nodes.
//
// The workflows only depend on the Model interface, so tests and embedders can
// plug in any implementation through Func.
package llm

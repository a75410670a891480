/*
Package graph builds and validates teller workflow graphs.

A workflow is a set of named nodes, one entry point, and at most one outgoing
edge definition per node. An edge is either fixed or conditional; a
conditional edge asks a Selector for a label and routes through a mapping.
The End sentinel terminates execution.

Example usage:

	b := graph.New("greeting")
	_ = b.AddNode("hello", hello)
	_ = b.AddNode("bye", bye)
	_ = b.SetEntry("hello")
	_ = b.AddEdge("hello", "bye")
	_ = b.AddEdge("bye", graph.End)

	g, err := b.Compile()

Compile reports every builder failure plus dangling targets, a missing entry
and unreachable nodes. All of them match domain.ErrConfiguration.
*/
package graph

/*
Package teller runs conversational banking workflows as small, validated graphs.

A workflow is a set of nodes that each read a shared state and return a partial
update. The engine merges updates (fields overwrite, messages append), follows
fixed or conditional edges, and stops at the terminal marker. Every completed
node is published to the caller as a Step, so hosts can render progress while
the workflow is still running.

# Usage

	b := graph.New("greeting")
	_ = b.AddNode("hello", hello)
	_ = b.SetEntry("hello")
	_ = b.AddEdge("hello", graph.End)

	g, err := b.Compile()
	if err != nil {
		log.Fatal(err)
	}

	eng := teller.New(g, teller.WithLogger(logger))
	run := eng.Start(ctx, domain.NewState(map[string]any{"user_input": "hi"}))
	for step := range run.Steps() {
		fmt.Println(step.Node)
	}
	if err := run.Err(); err != nil {
		log.Fatal(err)
	}

The assistants in pkg/assistant are built on this package; the adapters in
pkg/adapters expose them over MCP and HTTP.
*/
package teller

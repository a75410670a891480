package teller_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/graph"
)

// ExampleEngine_Start builds a two-node workflow and prints each step as it completes.
func ExampleEngine_Start() {
	greet := func(_ context.Context, s *domain.State) (domain.Update, error) {
		return domain.Update{
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: "Hello, " + s.String("name")}},
		}, nil
	}
	bye := func(context.Context, *domain.State) (domain.Update, error) {
		return domain.Update{
			Fields:   map[string]any{"done": true},
			Messages: []domain.Message{{Role: domain.RoleAssistant, Content: "Goodbye."}},
		}, nil
	}

	b := graph.New("greeting")
	_ = b.AddNode("greet", greet)
	_ = b.AddNode("bye", bye)
	_ = b.SetEntry("greet")
	_ = b.AddEdge("greet", "bye")
	_ = b.AddEdge("bye", graph.End)

	g, err := b.Compile()
	if err != nil {
		log.Fatal(err)
	}

	eng := teller.New(g)
	run := eng.Start(context.Background(), domain.NewState(map[string]any{"name": "Melanie"}))
	for step := range run.Steps() {
		fmt.Printf("%s: %s\n", step.Node, step.Update.Messages[0].Content)
	}
	if err := run.Err(); err != nil {
		log.Fatal(err)
	}
	fmt.Println("done:", run.State().Bool("done"))

	// Output:
	// greet: Hello, Melanie
	// bye: Goodbye.
	// done: true
}

package examples

import (
	"fmt"

	"github.com/mathisarends/voiceorchestrator/internal/tools"
)

// BrowserSearch is a streaming tool: it yields incremental progress chunks
// as it works, each one forwarded to the model as a spoken progress update.
var BrowserSearch = tools.Descriptor{
	Name:        "search_the_web",
	Description: "Search the web and narrate progress while results come in.",
	Params: []tools.Param{
		{Name: "query", Type: tools.TypeString, Description: "What to search for", Required: true},
	},
	StreamHandler: func(args map[string]any, _ tools.SpecialToolParameters) (<-chan string, error) {
		query, _ := args["query"].(string)
		if query == "" {
			return nil, fmt.Errorf("query is required")
		}

		ch := make(chan string, 3)
		go func() {
			defer close(ch)
			ch <- fmt.Sprintf("Searching for %q.", query)
			ch <- "Found a few promising results, reading them now."
			ch <- "Here's what I found."
		}()
		return ch, nil
	},
}

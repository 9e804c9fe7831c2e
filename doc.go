// Package agentctx provides a conversational agent runtime built around a
// context/token budget engine.
//
// An Agent runs a turn loop: it calls a reasoning engine, lets it request
// tool invocations, feeds the results back, and streams incremental output
// to the caller. Before every model call the conversation is prepared so it
// fits a strict token budget.
//
// # Quick Start
//
//	sdk := anthropic.NewClient()
//	client, _ := model.NewAnthropicClient(&sdk, "claude-sonnet-4-5")
//	agent, err := agentctx.New(
//	    agentctx.Config{
//	        Client:       client,
//	        Model:        "claude-sonnet-4-5",
//	        SystemPrompt: "You are a helpful assistant",
//	    },
//	    agentctx.WithTools(weatherTool),
//	    agentctx.WithStore(storage.NewMemoryStore()),
//	)
//
//	events, _ := agent.Run(ctx, agentctx.Request{
//	    ConversationID: "conv-1",
//	    Prompt:         "What's the weather in Paris?",
//	})
//	for e := range events {
//	    switch ev := e.(type) {
//	    case *streaming.TextEvent:
//	        fmt.Print(ev.Content)
//	    case *streaming.ErrorEvent:
//	        log.Println(ev.Message)
//	    }
//	}
//
// RunSync drains the stream and returns the aggregated Result.
//
// # Context Preparation
//
// The history passes three stages before each call:
//
//  1. the strategy orchestrator (sliding window, summarization,
//     retrieval-augmented, or hybrid; see package strategy);
//  2. the budget enforcer, which keeps the newest suffix that fits the
//     token ceiling after reserving room for the system prompt and tools;
//  3. a repair pass that drops tool_use and tool_result blocks whose
//     partner was removed.
//
// The last PreserveMessages messages are never dropped or paraphrased by
// the strategy stage.
//
// # Loop States
//
// Each run follows the machine in package runstate:
//
//	init -> call_model -> route -> execute_tools -> call_model ...
//	                            \-> terminated
//
// A model failure ends the run with one ErrorEvent; tool failures are
// returned to the model as error results. The iteration cap ends the run
// with a DoneEvent whose Reason is "max_iterations".
//
// # Persistence, Cache and Cost
//
// With a store, new messages are appended when the run ends. With a cache,
// final answers that used no tools are cached by prompt and served at init.
// With a cost guard, the user's monthly ceiling is checked before the first
// call and usage is recorded at the end. All three are best effort.
package agentctx

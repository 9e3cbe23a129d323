// Package agent runs the conversation loop between an inference provider
// and the aggregated tool catalog.
//
// Invariants:
//   - Every Process call records exactly one conversation turn, including
//     turns that fail, hit the iteration cap or recover from a panic.
//   - Every tool-use part yields exactly one tool-call record.
//   - Model requests per turn never exceed the configured MaxIterations.
//   - Gateway failures surface as text parts, never as errors.
//
// Usage:
//
//	provider, _ := agent.NewProvider(agent.ProviderConfig{Provider: "openai", APIKey: key})
//	gw, _ := agent.NewGateway(agent.GatewayConfig{Provider: provider, Logger: log})
//	orch, _ := agent.NewOrchestrator(agent.Config{
//		Router:  manager,
//		Gateway: gw,
//		Store:   store,
//		Model:   "qwen-max",
//	})
//	answer := orch.Process(ctx, "what is 2 + 3?")
//	_ = answer
package agent

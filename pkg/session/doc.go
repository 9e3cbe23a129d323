// Package session connects to every configured tool server, keeps one live
// MCP client per server name, and exposes their tools as a single catalog.
//
// Invariants:
//   - At most one live session per server name.
//   - A failing server never prevents the others from connecting.
//   - Tool names in a Catalog are unique; the first server to register a
//     name keeps it.
//   - Tools without a usable JSON schema are left out of the Catalog.
//
// Usage:
//
//	mgr := session.NewManager(session.Config{Logger: log})
//	mgr.ConnectAll(ctx, cfg.Servers)
//	defer mgr.Cleanup()
//	catalog := mgr.ListAggregatedTools(ctx)
//	out, err := mgr.Dispatch(ctx, "calculator", map[string]any{"expression": "2+2"})
package session

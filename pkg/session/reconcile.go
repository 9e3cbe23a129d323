package session

import (
	"context"
	"reflect"

	"github.com/harun/mcphub/pkg/transport"
)

// Reconcile brings the live sessions in line with configs: servers that were
// removed, disabled or changed are disconnected, and new or changed enabled
// servers are connected.
func (m *Manager) Reconcile(ctx context.Context, configs []transport.ServerConfig) ConnectReport {
	want := make(map[string]transport.ServerConfig, len(configs))
	for _, c := range configs {
		if c.IsEnabled() {
			if _, dup := want[c.Name]; !dup {
				want[c.Name] = c
			}
		}
	}

	for _, s := range m.snapshot() {
		next, keep := want[s.Name]
		if keep && reflect.DeepEqual(next, s.Config) {
			continue
		}
		if err := m.Disconnect(s.Name); err != nil {
			m.logger.Warn().Err(err).Str("server", s.Name).Msg("Disconnect during reload failed")
		}
	}

	pending := make([]transport.ServerConfig, 0, len(configs))
	for _, c := range configs {
		if !m.has(c.Name) {
			pending = append(pending, c)
		}
	}

	report := m.ConnectAll(ctx, pending)
	m.logger.Info().
		Strs("connected", report.Connected).
		Int("failed", len(report.Failed)).
		Msg("Server configuration reconciled")
	return report
}

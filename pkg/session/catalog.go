package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

var errNoSchema = errors.New("tool has no input schema")

// ToolDescriptor is one tool as offered to the model.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
	Server      string

	schema *gojsonschema.Schema
}

// Validate checks input against the tool's compiled schema.
func (d ToolDescriptor) Validate(input map[string]any) error {
	if d.schema == nil {
		return nil
	}
	if input == nil {
		input = map[string]any{}
	}
	res, err := d.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
	}
	return nil
}

// Catalog is the aggregated, name-unique tool map for one turn.
type Catalog struct {
	entries []ToolDescriptor
	index   map[string]int
}

func newCatalog() *Catalog {
	return &Catalog{index: make(map[string]int)}
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Tools returns the tools in registration order.
func (c *Catalog) Tools() []ToolDescriptor {
	if c == nil {
		return nil
	}
	out := make([]ToolDescriptor, len(c.entries))
	copy(out, c.entries)
	return out
}

// Lookup finds a tool by name.
func (c *Catalog) Lookup(name string) (ToolDescriptor, bool) {
	if c == nil {
		return ToolDescriptor{}, false
	}
	i, ok := c.index[name]
	if !ok {
		return ToolDescriptor{}, false
	}
	return c.entries[i], true
}

// add registers d unless the name is taken. It reports whether d was added.
func (c *Catalog) add(d ToolDescriptor) bool {
	if _, taken := c.index[d.Name]; taken {
		return false
	}
	c.index[d.Name] = len(c.entries)
	c.entries = append(c.entries, d)
	return true
}

// serverTools is one server's catalog snapshot, in connection order.
type serverTools struct {
	server string
	tools  []mcp.Tool
}

// buildCatalog merges per-server tool lists. Schema-less or invalid tools
// are dropped and later duplicates lose to the first registration.
func buildCatalog(groups []serverTools, log zerolog.Logger) *Catalog {
	cat := newCatalog()
	owner := make(map[string]string)

	for _, g := range groups {
		for _, t := range g.tools {
			if t.Name == "" {
				continue
			}
			schemaMap, compiled, err := compileSchema(t)
			if err != nil {
				log.Warn().
					Err(err).
					Str("server", g.server).
					Str("tool", t.Name).
					Msg("Skipping tool with unusable input schema")
				continue
			}
			d := ToolDescriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: schemaMap,
				Server:      g.server,
				schema:      compiled,
			}
			if !cat.add(d) {
				log.Warn().
					Str("tool", t.Name).
					Str("server", g.server).
					Str("kept_server", owner[t.Name]).
					Msg("Tool name collision, keeping first registration")
				continue
			}
			owner[t.Name] = g.server
		}
	}
	return cat
}

// compileSchema extracts a tool's input schema as a map and compiles it.
func compileSchema(t mcp.Tool) (map[string]any, *gojsonschema.Schema, error) {
	var raw []byte
	switch {
	case len(t.RawInputSchema) > 0:
		raw = t.RawInputSchema
	case t.InputSchema.Type != "":
		b, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, nil, err
		}
		raw = b
	default:
		return nil, nil, errNoSchema
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("decode schema: %w", err)
	}
	if typ, _ := m["type"].(string); typ == "" {
		return nil, nil, errNoSchema
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(m))
	if err != nil {
		return nil, nil, fmt.Errorf("compile schema: %w", err)
	}
	return m, compiled, nil
}

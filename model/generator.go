package model

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Querier runs single-row queries. *sql.DB, *sql.Tx and *sql.Conn satisfy it.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Quoter wraps a table or column name in the database's identifier quotes.
type Quoter interface {
	Quote(name string) string
}

// Generator produces primary key values for the one field it is bound to.
//
// Init is called once while the owning model is built; NextValue returns the
// next key, converted to the field's Go type. quote is the dialect of the
// session the key is issued on. Implementations that keep state across
// calls must serialize access to it.
type Generator interface {
	Init(decl GeneratorDecl, field *Field, m *Model) error
	NextValue(ctx context.Context, q Querier, quote Quoter) (any, error)
}

// GeneratorDecl is the parsed form of a `generated:name(k=v,...)` tag.
type GeneratorDecl struct {
	Strategy string
	Step     int64
	Cached   bool
	Params   map[string]string
}

// GeneratorBinding ties one generator instance to one field.
type GeneratorBinding struct {
	Strategy  string
	Generator Generator
	Step      int64
	Cached    bool
}

var (
	generators   = make(map[string]func() Generator)
	generatorsMu sync.RWMutex
)

// RegisterGenerator makes a generator strategy available to the
// `generated` tag. It panics on an empty name, nil factory or duplicate.
func RegisterGenerator(name string, factory func() Generator) {
	if name == "" {
		panic("generator name cannot be empty")
	}
	if factory == nil {
		panic("generator factory cannot be nil")
	}

	generatorsMu.Lock()
	defer generatorsMu.Unlock()

	if _, exists := generators[name]; exists {
		panic(fmt.Sprintf("generator %q is already registered", name))
	}
	generators[name] = factory
}

// LookupGenerator returns the factory registered under name.
func LookupGenerator(name string) (func() Generator, bool) {
	generatorsMu.RLock()
	defer generatorsMu.RUnlock()
	f, ok := generators[name]
	return f, ok
}

// ParseGeneratorDecl parses "name" or "name(step=2,cached=false,k=v)".
func ParseGeneratorDecl(raw string) (GeneratorDecl, error) {
	decl := GeneratorDecl{Step: 1, Cached: true, Params: make(map[string]string)}
	raw = strings.TrimSpace(raw)

	name, args := raw, ""
	if idx := strings.Index(raw, "("); idx >= 0 {
		if !strings.HasSuffix(raw, ")") {
			return decl, fmt.Errorf("unbalanced parameters in %q", raw)
		}
		name, args = raw[:idx], raw[idx+1:len(raw)-1]
	}
	decl.Strategy = strings.ToLower(strings.TrimSpace(name))
	if decl.Strategy == "" {
		return decl, fmt.Errorf("missing generator strategy in %q", raw)
	}

	for _, p := range strings.Split(args, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			kv = strings.SplitN(p, ":", 2)
		}
		if len(kv) != 2 {
			return decl, fmt.Errorf("generator parameter %q is not name=value", p)
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])

		switch key {
		case "step":
			step, err := strconv.ParseInt(val, 10, 64)
			if err != nil || step <= 0 {
				return decl, fmt.Errorf("generator step %q must be a positive integer", val)
			}
			decl.Step = step
		case "cached":
			cached, err := strconv.ParseBool(val)
			if err != nil {
				return decl, fmt.Errorf("generator parameter cached=%q must be true or false", val)
			}
			decl.Cached = cached
		default:
			decl.Params[key] = val
		}
	}
	return decl, nil
}

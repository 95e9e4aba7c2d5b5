package protobuf

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Aleph-Alpha/serde/v1/config"
	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/Aleph-Alpha/serde/v1/schema"
	"github.com/Aleph-Alpha/serde/v1/schema_registry"
	"github.com/stretchr/testify/require"
)

const registryURL = "http://registry.local:8081"

// scenarioSchema is the two-column row {id INTEGER, name STRING}.
func scenarioSchema() schema.Schema {
	return schema.MustNew(
		schema.Field{Name: "id", Type: schema.IntegerType},
		schema.Field{Name: "name", Type: schema.StringType},
	)
}

func nestedSchema() schema.Schema {
	return schema.MustNew(
		schema.Field{Name: "ID", Type: schema.BigintType},
		schema.Field{Name: "ITEMS", Type: schema.ArrayOf(schema.StructOf(
			schema.Field{Name: "SKU", Type: schema.StringType},
			schema.Field{Name: "QTY", Type: schema.IntegerType},
		))},
		schema.Field{Name: "ADDR", Type: schema.StructOf(
			schema.Field{Name: "CITY", Type: schema.StringType},
			schema.Field{Name: "GEO", Type: schema.StructOf(
				schema.Field{Name: "LAT", Type: schema.DoubleType},
			)},
		)},
		schema.Field{Name: "ATTRS", Type: schema.MapOf(schema.StructOf(
			schema.Field{Name: "V", Type: schema.BooleanType},
		))},
	)
}

func allTypesSchema() schema.Schema {
	return schema.MustNew(
		schema.Field{Name: "B", Type: schema.BooleanType},
		schema.Field{Name: "I", Type: schema.IntegerType},
		schema.Field{Name: "L", Type: schema.BigintType},
		schema.Field{Name: "D", Type: schema.DoubleType},
		schema.Field{Name: "S", Type: schema.StringType},
		schema.Field{Name: "RAW", Type: schema.BytesType},
		schema.Field{Name: "NUMS", Type: schema.ArrayOf(schema.BigintType)},
		schema.Field{Name: "LABELS", Type: schema.MapOf(schema.StringType)},
	)
}

func registryConfig(url string) *config.Config {
	return config.New(map[string]any{
		config.SchemaRegistryURLProperty: url,
	})
}

func mustWire(t *testing.T, s schema.Schema) *WireSchema {
	t.Helper()
	wire, err := ToWireSchema(s)
	require.NoError(t, err)
	return wire
}

// countingFactory hands out one shared in-memory registry and counts calls.
type countingFactory struct {
	registry *schema_registry.MockClient
	calls    atomic.Int32
	failOn   map[int32]error
}

func newCountingFactory() *countingFactory {
	return &countingFactory{registry: schema_registry.NewMockClient()}
}

func (c *countingFactory) factory() schema_registry.ClientFactory {
	return func() (schema_registry.Registry, error) {
		n := c.calls.Add(1)
		if err, ok := c.failOn[n]; ok {
			return nil, err
		}
		return c.registry, nil
	}
}

type recordingObserver struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (r *recordingObserver) ObserveOperation(ctx observability.OperationContext) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, ctx)
}

func (r *recordingObserver) count(component, operation string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Component == component && op.Operation == operation {
			n++
		}
	}
	return n
}

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for pool telemetry.
// Following OpenTelemetry naming conventions: namespace.attribute_name
const (
	AttrPoolName     = attribute.Key("pool.name")
	AttrPoolCapacity = attribute.Key("pool.capacity")
	AttrGrowthFactor = attribute.Key("pool.growth_factor")
	AttrOperation    = attribute.Key("operation")
	AttrResult       = attribute.Key("result")
	AttrEnvironment  = attribute.Key("environment")
)

// Operation values
const (
	OperationAcquire = "acquire"
	OperationRelease = "release"
)

// Result values
const (
	ResultOK        = "ok"
	ResultExhausted = "capacity_exceeded"
)

// PoolAttributes returns common attributes for pool metrics.
func PoolAttributes(environment, poolName string, capacity, growthFactor int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrPoolName.String(poolName),
		AttrPoolCapacity.Int(capacity),
		AttrGrowthFactor.Int(growthFactor),
	}
}

// OperationResultAttributes extends base with operation and result classification.
func OperationResultAttributes(base []attribute.KeyValue, operation, result string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(base)+2)
	out = append(out, base...)
	out = append(out, AttrOperation.String(operation), AttrResult.String(result))
	return out
}

package models

import (
	"encoding/json"
	"fmt"
)

// ColumnMapping is the persisted link from a schema slot to a dataset column.
// Two mappings are the same mapping when both fields match.
type ColumnMapping struct {
	ColumnName  string `json:"column_name"`
	StorageType string `json:"storage_type"`
}

// Equal reports structural equality on (ColumnName, StorageType).
func (m ColumnMapping) Equal(other ColumnMapping) bool {
	return m.ColumnName == other.ColumnName && m.StorageType == other.StorageType
}

// ValueKind tags the variants of ValueMapping on the wire.
type ValueKind string

const (
	ValueKindColumn     ValueKind = "column"
	ValueKindConstant   ValueKind = "constant"
	ValueKindExpression ValueKind = "expression"
)

// ValueMapping is where a statement or qualifier value comes from.
// It is a closed sum type: the only implementations are ColumnValue,
// ConstantValue and ExpressionValue.
type ValueMapping interface {
	Kind() ValueKind
	DataType() SchemaValueType
	isValueMapping()
}

// ColumnValue takes the value from a dataset column.
type ColumnValue struct {
	Column ColumnMapping
	Type   SchemaValueType
}

// ConstantValue uses the same literal for every row.
type ConstantValue struct {
	Value string
	Type  SchemaValueType
}

// ExpressionValue computes the value from a formula over the row.
type ExpressionValue struct {
	Expression string
	Type       SchemaValueType
}

func (ColumnValue) Kind() ValueKind     { return ValueKindColumn }
func (ConstantValue) Kind() ValueKind   { return ValueKindConstant }
func (ExpressionValue) Kind() ValueKind { return ValueKindExpression }

func (v ColumnValue) DataType() SchemaValueType     { return v.Type }
func (v ConstantValue) DataType() SchemaValueType   { return v.Type }
func (v ExpressionValue) DataType() SchemaValueType { return v.Type }

func (ColumnValue) isValueMapping()     {}
func (ConstantValue) isValueMapping()   {}
func (ExpressionValue) isValueMapping() {}

// valueEnvelope is the tagged JSON form shared by all variants.
type valueEnvelope struct {
	Type        ValueKind       `json:"type"`
	DataType    SchemaValueType `json:"data_type"`
	ColumnName  string          `json:"column_name,omitempty"`
	StorageType string          `json:"storage_type,omitempty"`
	Value       string          `json:"value,omitempty"`
	Expression  string          `json:"expression,omitempty"`
}

func (v ColumnValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueEnvelope{
		Type:        ValueKindColumn,
		DataType:    v.Type,
		ColumnName:  v.Column.ColumnName,
		StorageType: v.Column.StorageType,
	})
}

func (v ConstantValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueEnvelope{Type: ValueKindConstant, DataType: v.Type, Value: v.Value})
}

func (v ExpressionValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueEnvelope{Type: ValueKindExpression, DataType: v.Type, Expression: v.Expression})
}

// UnmarshalValueMapping decodes the tagged JSON form. A JSON null yields a nil
// mapping, which is how a statement with no value selected yet is stored.
func UnmarshalValueMapping(data []byte) (ValueMapping, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var env valueEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode value mapping: %w", err)
	}

	switch env.Type {
	case ValueKindColumn:
		return ColumnValue{
			Column: ColumnMapping{ColumnName: env.ColumnName, StorageType: env.StorageType},
			Type:   env.DataType,
		}, nil
	case ValueKindConstant:
		return ConstantValue{Value: env.Value, Type: env.DataType}, nil
	case ValueKindExpression:
		return ExpressionValue{Expression: env.Expression, Type: env.DataType}, nil
	default:
		return nil, fmt.Errorf("unknown value mapping type %q", env.Type)
	}
}

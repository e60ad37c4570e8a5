// Package mapping decides whether a dataset column may be dropped onto a
// schema slot and drives the drag-and-drop session that commits it.
package mapping

import (
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

var (
	textTypes     = []models.SchemaValueType{models.ValueTypeString, models.ValueTypeURL, models.ValueTypeExternalID, models.ValueTypeMonolingualText}
	longTextTypes = []models.SchemaValueType{models.ValueTypeString, models.ValueTypeMonolingualText}
	numericTypes  = []models.SchemaValueType{models.ValueTypeQuantity}
	temporalTypes = []models.SchemaValueType{models.ValueTypeTime}
	jsonTypes     = []models.SchemaValueType{models.ValueTypeString}
)

// compatibility maps an upper-cased storage type to the schema value types
// its values can feed. BOOLEAN feeds nothing and needs an upstream transform.
var compatibility = map[string][]models.SchemaValueType{
	"VARCHAR": textTypes,
	"CHAR":    textTypes,
	"TEXT":    longTextTypes,
	"STRING":  longTextTypes,

	"INTEGER":  numericTypes,
	"BIGINT":   numericTypes,
	"SMALLINT": numericTypes,
	"TINYINT":  numericTypes,
	"HUGEINT":  numericTypes,
	"DECIMAL":  numericTypes,
	"NUMERIC":  numericTypes,
	"FLOAT":    numericTypes,
	"DOUBLE":   numericTypes,
	"REAL":     numericTypes,

	"DATE":        temporalTypes,
	"DATETIME":    temporalTypes,
	"TIMESTAMP":   temporalTypes,
	"TIMESTAMPTZ": temporalTypes,

	"BOOLEAN": {},

	"JSON":  jsonTypes,
	"ARRAY": jsonTypes,
}

// normalizeStorageType upper-cases a storage type and drops any size or
// precision suffix, so "varchar(255)" and "DECIMAL(10,2)" resolve.
func normalizeStorageType(storageType string) string {
	t := strings.ToUpper(strings.TrimSpace(storageType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// CompatibleTypes returns the schema value types a storage type can feed.
// Unknown storage types yield an empty result.
func CompatibleTypes(storageType string) []models.SchemaValueType {
	types := compatibility[normalizeStorageType(storageType)]
	return append([]models.SchemaValueType{}, types...)
}

// IsCompatible reports whether the storage type can feed at least one of
// the accepted types.
func IsCompatible(storageType string, accepted []models.SchemaValueType) bool {
	for _, vt := range compatibility[normalizeStorageType(storageType)] {
		for _, a := range accepted {
			if vt == a {
				return true
			}
		}
	}
	return false
}

// StorageTypes lists every storage type in the table, sorted.
func StorageTypes() []string {
	out := make([]string, 0, len(compatibility))
	for t := range compatibility {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// PreferredValueType picks the value type a column should carry when dropped
// onto a target: the first of the column's compatible types the target
// accepts. ok is false when there is none.
func PreferredValueType(storageType string, accepted []models.SchemaValueType) (models.SchemaValueType, bool) {
	for _, vt := range compatibility[normalizeStorageType(storageType)] {
		for _, a := range accepted {
			if vt == a {
				return vt, true
			}
		}
	}
	return "", false
}

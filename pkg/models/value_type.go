package models

// SchemaValueType is the knowledge-base-native kind of a statement value.
// The set is closed; the string values match Wikibase property datatypes.
type SchemaValueType string

const (
	ValueTypeString           SchemaValueType = "string"
	ValueTypeWikibaseItem     SchemaValueType = "wikibase-item"
	ValueTypeWikibaseProperty SchemaValueType = "wikibase-property"
	ValueTypeQuantity         SchemaValueType = "quantity"
	ValueTypeTime             SchemaValueType = "time"
	ValueTypeGlobeCoordinate  SchemaValueType = "globe-coordinate"
	ValueTypeURL              SchemaValueType = "url"
	ValueTypeExternalID       SchemaValueType = "external-id"
	ValueTypeMonolingualText  SchemaValueType = "monolingualtext"
	ValueTypeCommonsMedia     SchemaValueType = "commonsMedia"
)

// AllSchemaValueTypes lists every SchemaValueType in declaration order.
var AllSchemaValueTypes = []SchemaValueType{
	ValueTypeString,
	ValueTypeWikibaseItem,
	ValueTypeWikibaseProperty,
	ValueTypeQuantity,
	ValueTypeTime,
	ValueTypeGlobeCoordinate,
	ValueTypeURL,
	ValueTypeExternalID,
	ValueTypeMonolingualText,
	ValueTypeCommonsMedia,
}

// IsValid reports whether t is a member of the closed set.
func (t SchemaValueType) IsValid() bool {
	for _, v := range AllSchemaValueTypes {
		if v == t {
			return true
		}
	}
	return false
}

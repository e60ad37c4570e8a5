package knowledgebase

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cast"

	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// Wikibase property and item ids used by the property constraint system.
const (
	propertyConstraint = "P2302"

	qualifierFormatPattern   = "P1793"
	qualifierAllowedItem     = "P2305"
	qualifierMinimumQuantity = "P2313"
	qualifierMaximumQuantity = "P2312"
	qualifierMinimumDate     = "P2310"
	qualifierMaximumDate     = "P2311"
	qualifierClarification   = "P6607"

	itemFormatConstraint      = "Q21502404"
	itemOneOfConstraint       = "Q21510859"
	itemRangeConstraint       = "Q21510860"
	itemSingleValueConstraint = "Q19474404"
)

type languageValue struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type entity struct {
	ID           string                   `json:"id"`
	Missing      any                      `json:"missing,omitempty"`
	DataType     string                   `json:"datatype"`
	Labels       map[string]languageValue `json:"labels"`
	Descriptions map[string]languageValue `json:"descriptions"`
	Claims       map[string][]claim       `json:"claims"`
}

type claim struct {
	MainSnak   snak              `json:"mainsnak"`
	Qualifiers map[string][]snak `json:"qualifiers"`
	Rank       string            `json:"rank"`
}

type snak struct {
	SnakType  string     `json:"snaktype"`
	DataValue *dataValue `json:"datavalue,omitempty"`
}

type dataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// String flattens a datavalue to the form constraint checks compare
// against: entity ids, quantity amounts without a leading "+", time
// strings and monolingual text.
func (d *dataValue) String() string {
	if d == nil {
		return ""
	}
	var v any
	if err := json.Unmarshal(d.Value, &v); err != nil {
		return ""
	}

	switch d.Type {
	case "string":
		return cast.ToString(v)
	case "wikibase-entityid":
		return cast.ToString(cast.ToStringMap(v)["id"])
	case "quantity":
		return strings.TrimPrefix(cast.ToString(cast.ToStringMap(v)["amount"]), "+")
	case "time":
		return cast.ToString(cast.ToStringMap(v)["time"])
	case "monolingualtext":
		return cast.ToString(cast.ToStringMap(v)["text"])
	default:
		return cast.ToString(v)
	}
}

func (s snak) value() string {
	if s.SnakType != "" && s.SnakType != "value" {
		return ""
	}
	return s.DataValue.String()
}

// qualifierValues returns the non-empty values of one qualifier property.
func (c claim) qualifierValues(property string) []string {
	var out []string
	for _, q := range c.Qualifiers[property] {
		if v := q.value(); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseConstraints turns the P2302 claims of a property into constraints.
// Deprecated claims are skipped.
func parseConstraints(claims []claim) []models.PropertyConstraint {
	var out []models.PropertyConstraint
	for _, cl := range claims {
		if cl.Rank == "deprecated" {
			continue
		}
		itemID := cl.MainSnak.value()
		if itemID == "" {
			continue
		}

		c := models.PropertyConstraint{
			Type:             constraintType(itemID),
			ConstraintItemID: itemID,
			Parameters:       map[string][]string{},
		}
		switch c.Type {
		case models.ConstraintFormat:
			setParam(c.Parameters, models.ConstraintParamPattern, cl.qualifierValues(qualifierFormatPattern))
		case models.ConstraintOneOf:
			setParam(c.Parameters, models.ConstraintParamValues, cl.qualifierValues(qualifierAllowedItem))
		case models.ConstraintRange:
			setParam(c.Parameters, models.ConstraintParamMinimum, cl.qualifierValues(qualifierMinimumQuantity))
			setParam(c.Parameters, models.ConstraintParamMaximum, cl.qualifierValues(qualifierMaximumQuantity))
			setParam(c.Parameters, "minimum_date", cl.qualifierValues(qualifierMinimumDate))
			setParam(c.Parameters, "maximum_date", cl.qualifierValues(qualifierMaximumDate))
		}
		if clar := cl.qualifierValues(qualifierClarification); len(clar) > 0 {
			c.Description = clar[0]
		}
		if len(c.Parameters) == 0 {
			c.Parameters = nil
		}
		out = append(out, c)
	}
	return out
}

func setParam(params map[string][]string, key string, values []string) {
	if len(values) > 0 {
		params[key] = values
	}
}

func constraintType(itemID string) models.ConstraintType {
	switch itemID {
	case itemFormatConstraint:
		return models.ConstraintFormat
	case itemOneOfConstraint:
		return models.ConstraintOneOf
	case itemRangeConstraint:
		return models.ConstraintRange
	case itemSingleValueConstraint:
		return models.ConstraintSingleValue
	default:
		return models.ConstraintOther
	}
}

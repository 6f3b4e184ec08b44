package catalog

// Terminology maps a business type to the customer-facing noun for its
// reservable unit, so the prompt-context builder can say "table" vs.
// "appointment slot" vs. "rental unit" without a dedicated tool.
var Terminology = map[string]string{
	"fnb":    "table",
	"salon":  "appointment slot",
	"rental": "rental unit",
}

// TermFor returns the reservable-unit noun for businessType, defaulting to
// "slot" for unrecognized business types.
func TermFor(businessType string) string {
	if term, ok := Terminology[businessType]; ok {
		return term
	}
	return "slot"
}

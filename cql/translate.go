package cql

// Translate parses a filter in the named surface syntax, validates every
// attribute reference against the queryable allowlist, and lowers it to the
// store-native cql2-json payload.
func Translate(filter string, lang string, q Queryables) (map[string]interface{}, error) {
	var expr Expr
	var err error

	switch lang {
	case "cql2-text":
		expr, err = Parse(filter)
	case "cql2-json":
		expr, err = ParseJSON([]byte(filter))
	default:
		return nil, errf("unsupported filter language %q", lang)
	}
	if err != nil {
		return nil, err
	}

	if err := Validate(expr, q); err != nil {
		return nil, err
	}

	return Lower(expr), nil
}

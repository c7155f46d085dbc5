package agents

// IntArg reads a positive integer tool argument, falling back to def. JSON
// decoding hands numbers over as float64.
func IntArg(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}

// StringArg reads a string tool argument, falling back to def.
func StringArg(args map[string]interface{}, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

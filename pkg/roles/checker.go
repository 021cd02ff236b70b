package roles

// CheckPermission evaluates a matrix for (entity, action) and optionally a
// single field. Missing entity entries deny. A field explicitly marked
// false denies; unlisted fields are allowed.
//
// For writes, both WriteAll and WriteOwn report true here; callers that
// need the ownership branch ask WriteAccess for the raw mode and compare
// the record owner themselves.
func CheckPermission(matrix Matrix, entity string, action Action, field ...string) bool {
	perms, ok := matrix[entity]
	if !ok {
		return false
	}

	switch action {
	case ActionRead:
		if !perms.Read {
			return false
		}
	case ActionWrite:
		if perms.Write == WriteNone {
			return false
		}
	case ActionDelete:
		if !perms.Delete {
			return false
		}
	default:
		return false
	}

	if len(field) > 0 {
		if allowed, listed := perms.Fields[field[0]]; listed && !allowed {
			return false
		}
	}

	return true
}

// WriteAccess returns the raw write mode for an entity so callers can
// enforce the "own" ownership comparison. Missing entities report WriteNone.
func WriteAccess(matrix Matrix, entity string) WriteMode {
	perms, ok := matrix[entity]
	if !ok {
		return WriteNone
	}
	return perms.Write
}

// FilterFields strips exactly the keys marked false in the entity's field
// map. Every other key, listed or not, passes through unchanged. The input
// record is not mutated.
func FilterFields(matrix Matrix, entity string, record map[string]any) map[string]any {
	if record == nil {
		return nil
	}

	perms, ok := matrix[entity]
	if !ok || len(perms.Fields) == 0 {
		return record
	}

	filtered := make(map[string]any, len(record))
	for key, value := range record {
		if allowed, listed := perms.Fields[key]; listed && !allowed {
			continue
		}
		filtered[key] = value
	}
	return filtered
}

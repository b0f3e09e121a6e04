package query

import "strings"

// Match reports whether a record satisfies every criterion. valueOf returns
// the record's value for a document key.
func Match(filter []Criterion, valueOf func(name string) any) bool {
	for _, c := range filter {
		cmp, ok := compare(valueOf(c.Field.Name), c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case Eq:
			if cmp != 0 {
				return false
			}
		case Gt:
			if cmp <= 0 {
				return false
			}
		case Gte:
			if cmp < 0 {
				return false
			}
		case Lt:
			if cmp >= 0 {
				return false
			}
		case Lte:
			if cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Less orders two records by the given sort keys.
func Less(order []Order, a, b func(name string) any) bool {
	for _, o := range order {
		cmp, ok := compare(a(o.Field.Name), b(o.Field.Name))
		if !ok || cmp == 0 {
			continue
		}
		if o.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

// compare returns -1, 0 or 1; ok is false when the values are not comparable.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

package query

import "docdb/values"

// fieldValue resolves field against (id, record), special-casing the id
// pseudo field.
func fieldValue(id string, record values.Record, field string) any {
	if field == IDField {
		return id
	}
	v, ok := record[field]
	if !ok {
		return values.Absent
	}
	return v
}

// Match reports whether (id, record) satisfies every filter in d. An
// empty filter set matches everything.
func Match(id string, record values.Record, d Descriptor) bool {
	for _, f := range d.Filters {
		if !matchFilter(f, id, record) {
			return false
		}
	}
	return true
}

func matchFilter(f Filter, id string, record values.Record) bool {
	v := fieldValue(id, record, f.Field)
	switch f.Op {
	case OpIs:
		return values.Equal(v, f.Operand)
	case OpIn:
		arr, ok := f.Operand.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if values.Equal(v, item) {
				return true
			}
		}
		return false
	case OpContains:
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if values.Equal(item, f.Operand) {
				return true
			}
		}
		return false
	case OpLT:
		return values.Compare(v, f.Operand) < 0
	case OpLTE:
		return values.Compare(v, f.Operand) <= 0
	case OpGT:
		return values.Compare(v, f.Operand) > 0
	case OpGTE:
		return values.Compare(v, f.Operand) >= 0
	default:
		return false
	}
}

// MatchRow is a Match convenience over a Row.
func MatchRow(row Row, d Descriptor) bool {
	return Match(row.ID, row.Record, d)
}

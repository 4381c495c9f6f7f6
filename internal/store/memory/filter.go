package memory

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// toDocument round-trips v through BSON so filters see the stored field
// names and types exactly as MongoDB would.
func toDocument(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Matches evaluates a MongoDB-style filter against doc. It understands the
// subset of the query language the services build: $and, $or, $nor,
// dotted paths and the $eq, $ne, $gt, $gte, $lt, $lte, $in, $nin operators.
func Matches(doc bson.M, filter interface{}) (bool, error) {
	pairs, err := entries(filter)
	if err != nil {
		return false, err
	}
	for _, p := range pairs {
		ok, err := matchEntry(doc, p.Key, p.Value)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchEntry(doc bson.M, key string, value interface{}) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		clauses, ok := asSlice(value)
		if !ok {
			return false, fmt.Errorf("%s expects an array, got %T", key, value)
		}
		for _, clause := range clauses {
			ok, err := Matches(doc, clause)
			if err != nil {
				return false, err
			}
			switch {
			case key == "$and" && !ok:
				return false, nil
			case key == "$or" && ok:
				return true, nil
			case key == "$nor" && ok:
				return false, nil
			}
		}
		return key != "$or", nil
	}

	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("unsupported top-level operator %s", key)
	}

	field, found := lookup(doc, key)
	if ops, isOps := operatorDoc(value); isOps {
		for _, op := range ops {
			ok, err := applyOperator(field, found, op.Key, op.Value)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return found && equalValues(field, value), nil
}

func applyOperator(field interface{}, found bool, op string, arg interface{}) (bool, error) {
	switch op {
	case "$eq":
		return found && equalValues(field, arg), nil
	case "$ne":
		return !found || !equalValues(field, arg), nil
	case "$in", "$nin":
		list, ok := asSlice(arg)
		if !ok {
			return false, fmt.Errorf("%s expects an array, got %T", op, arg)
		}
		hit := false
		for _, candidate := range list {
			if found && equalValues(field, candidate) {
				hit = true
				break
			}
		}
		return hit == (op == "$in"), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !found {
			return false, nil
		}
		cmp, ok := compareValues(field, arg)
		if !ok {
			return false, nil
		}
		switch op {
		case "$gt":
			return cmp > 0, nil
		case "$gte":
			return cmp >= 0, nil
		case "$lt":
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	}
	return false, fmt.Errorf("unsupported operator %s", op)
}

// lookup resolves a dotted path through nested documents.
func lookup(doc bson.M, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case bson.M:
			v, ok := node[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.D:
			found := false
			for _, e := range node {
				if e.Key == part {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return cur, true
}

// operatorDoc reports whether value is a document of $-operators.
func operatorDoc(value interface{}) (bson.D, bool) {
	switch value.(type) {
	case bson.D, bson.M:
	default:
		return nil, false
	}
	pairs, err := entries(value)
	if err != nil || len(pairs) == 0 {
		return nil, false
	}
	for _, p := range pairs {
		if !strings.HasPrefix(p.Key, "$") {
			return nil, false
		}
	}
	return pairs, true
}

func entries(filter interface{}) (bson.D, error) {
	switch f := filter.(type) {
	case nil:
		return nil, nil
	case bson.D:
		return f, nil
	case bson.M:
		keys := make([]string, 0, len(f))
		for k := range f {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(bson.D, 0, len(f))
		for _, k := range keys {
			out = append(out, bson.E{Key: k, Value: f[k]})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported filter type %T", filter)
}

func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case bson.A:
		return s, true
	case []interface{}:
		return s, true
	case []bson.D:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []bson.M:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []string:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []primitive.ObjectID:
		out := make([]interface{}, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	}
	return nil, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

func equalValues(field, arg interface{}) bool {
	if re, ok := arg.(primitive.Regex); ok {
		s, ok := field.(string)
		if !ok {
			return false
		}
		pattern := re.Pattern
		if strings.Contains(re.Options, "i") {
			pattern = "(?i)" + pattern
		}
		matched, err := regexp.MatchString(pattern, s)
		return err == nil && matched
	}
	// Arrays match when any element matches, as in MongoDB.
	if list, ok := field.(bson.A); ok {
		for _, el := range list {
			if equalValues(el, arg) {
				return true
			}
		}
		return false
	}
	if cmp, ok := compareValues(field, arg); ok {
		return cmp == 0
	}
	return field == arg
}

// compareValues orders numbers, strings, times and booleans. ok is false
// when the two values are not comparable.
func compareValues(a, b interface{}) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	if ta, ok := toTime(a); ok {
		tb, ok := toTime(b)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	case primitive.ObjectID:
		bv, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return strings.Compare(av.Hex(), bv.Hex()), true
	}
	return 0, false
}

// lessBySpec returns an ordering over documents for a MongoDB sort spec.
// Ties compare equal so a stable sort keeps insertion order.
func lessBySpec(spec bson.D) func(a, b bson.M) bool {
	return func(a, b bson.M) bool {
		for _, key := range spec {
			dir := 1
			if d, ok := toFloat(key.Value); ok && d < 0 {
				dir = -1
			}
			av, _ := lookup(a, key.Key)
			bv, _ := lookup(b, key.Key)
			cmp, ok := compareValues(av, bv)
			if !ok || cmp == 0 {
				continue
			}
			return cmp*dir < 0
		}
		return false
	}
}

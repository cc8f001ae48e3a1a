package housenumber

// Overlaps reports whether two house number expressions cover at least one
// common house number. Both expressions are expanded and tested for set
// intersection, so the check is symmetric: a record stored as "1-3" matches
// a query for "2,4" and vice versa.
//
// An expression that expands to an empty set matches nothing. Callers that
// want to skip house number filtering altogether must branch before calling
// this instead of passing an empty expression.
func Overlaps(a, b string) bool {
	return Expand(a).Intersects(Expand(b))
}

package phi

// ScrubMap returns a copy of data with every PHI-classified key removed,
// recursively. Extra field names broaden the PHI set for this call only.
// The input is never mutated.
//
// Keys win over values here: a pair whose key is PHI is dropped outright
// (no marker left behind), while values under surviving keys pass through
// verbatim. Pattern scanning of values is deliberately not applied; it is
// the weaker fallback reserved for free text, not structured fields.
func (c *Classifier) ScrubMap(data map[string]any, extraPHI ...string) map[string]any {
	cl := c.Extend(extraPHI...)
	out, _ := cl.Scrub(FromAny(data)).Any().(map[string]any)
	return out
}

// Scrub applies the key-dropping rule over the closed Value variants.
// Map pairs with PHI keys are removed; nested maps and sequences recurse;
// every other variant is returned unchanged.
func (c *Classifier) Scrub(v Value) Value {
	switch v.kind {
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			if c.IsPHIField(k) {
				continue
			}
			m[k] = c.Scrub(item)
		}
		return Value{kind: KindMap, m: m}
	case KindSequence:
		seq := make([]Value, len(v.seq))
		for i, item := range v.seq {
			seq[i] = c.Scrub(item)
		}
		return Value{kind: KindSequence, seq: seq}
	default:
		return v
	}
}

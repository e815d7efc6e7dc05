package document

import (
	"encoding/json"
	"strconv"
)

// MarshalJSON renders the Elasticsearch-compatible query body. Output is
// deterministic: clause order is preserved and object keys are sorted.
func (d *Document) MarshalJSON() ([]byte, error) {
	b := map[string]any{}
	if len(d.Must) > 0 {
		b["must"] = clausesJSON(d.Must)
	}
	if len(d.Should) > 0 {
		b["should"] = clausesJSON(d.Should)
	}
	if len(d.Filter) > 0 {
		b["filter"] = clausesJSON(d.Filter)
	}
	if d.MinimumShouldMatch != nil {
		b["minimum_should_match"] = strconv.Itoa(*d.MinimumShouldMatch) + "%"
	}

	var query map[string]any
	if d.ConstantScore {
		query = map[string]any{"constant_score": map[string]any{"filter": map[string]any{"bool": b}}}
	} else {
		query = map[string]any{"bool": b}
	}

	body := map[string]any{"query": query}
	if d.MinScore != nil {
		body["min_score"] = *d.MinScore
	}
	if d.Script != nil {
		body["script"] = map[string]any{
			"source": d.Script.Source,
			"params": d.Script.Params,
		}
	}
	if d.Size > 0 {
		body["size"] = d.Size
	}
	return json.Marshal(body)
}

func clausesJSON(cs []Clause) []any {
	out := make([]any, len(cs))
	for i := range cs {
		out[i] = clauseJSON(&cs[i])
	}
	return out
}

func clauseJSON(c *Clause) map[string]any {
	switch c.Kind {
	case ClauseMatch:
		return map[string]any{"match": map[string]any{c.Field: c.Value}}
	case ClauseWildcard:
		return map[string]any{"wildcard": map[string]any{c.Field: map[string]any{"value": c.Value}}}
	case ClauseRange:
		r := map[string]any{}
		if c.Lower != nil {
			r["gte"] = *c.Lower
		}
		if c.Upper != nil {
			r["lte"] = *c.Upper
		}
		return map[string]any{"range": map[string]any{c.Field: r}}
	default:
		return map[string]any{"term": map[string]any{c.Field: map[string]any{"value": c.Value}}}
	}
}

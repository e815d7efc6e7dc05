package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/chemdex/internal/db"
	"github.com/kailas-cloud/chemdex/internal/domain/search/document"
)

// Search runs a boolean screening query via FT.SEARCH.
// RediSearch has no minimum-should-match, so any MinShould > 0 is
// relaxed to "at least one": callers rank the superset themselves.
func (s *Store) Search(ctx context.Context, q *db.ScreenQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, errors.New("index name is required")
	}
	if q.Limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	queryStr, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	args := []string{q.IndexName, queryStr}
	if len(q.ReturnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(q.ReturnFields)))
		args = append(args, q.ReturnFields...)
	}
	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseListResult(raw)
}

// --- Result parsing ---

func parseListResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query building ---

// buildQuery translates clause lists into an FT.SEARCH query string.
func buildQuery(q *db.ScreenQuery) (string, error) {
	var parts []string

	for _, c := range q.Must {
		p, err := buildClause(c, q.TagFields)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}

	if q.MinShould > 0 || (len(q.Must) == 0 && len(q.Filter) == 0) {
		group, err := buildShouldGroup(q.Should, q.TagFields)
		if err != nil {
			return "", err
		}
		if group != "" {
			parts = append(parts, group)
		}
	}

	for _, c := range q.Filter {
		p, err := buildClause(c, q.TagFields)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}

	if len(parts) == 0 {
		return "*", nil
	}
	return strings.Join(parts, " "), nil
}

// buildClause renders one clause. TAG fields take brace syntax for match
// and wildcard clauses; everything else is queried as TEXT.
func buildClause(c document.Clause, tags map[string]bool) (string, error) {
	switch c.Kind {
	case document.ClauseTerm:
		if isNumeric(c.Value) {
			v := document.ValueString(c.Value)
			return fmt.Sprintf("@%s:[%s %s]", c.Field, v, v), nil
		}
		return buildTagFilter(c.Field, document.ValueString(c.Value)), nil
	case document.ClauseMatch:
		if tags[c.Field] {
			return buildTagFilter(c.Field, document.ValueString(c.Value)), nil
		}
		return fmt.Sprintf("@%s:(%s)", c.Field, escapeQuery(document.ValueString(c.Value))), nil
	case document.ClauseWildcard:
		pattern := strings.ReplaceAll(document.ValueString(c.Value), "'", `\'`)
		if tags[c.Field] {
			return fmt.Sprintf("@%s:{w'%s'}", c.Field, pattern), nil
		}
		return fmt.Sprintf("@%s:(w'%s')", c.Field, pattern), nil
	case document.ClauseRange:
		return buildNumericFilter(c.Field, c.Lower, c.Upper), nil
	default:
		return "", fmt.Errorf("%w: clause kind %q", db.ErrUnsupported, c.Kind)
	}
}

// buildShouldGroup ORs the clauses; term clauses on one tag field
// collapse into a single @field:{a|b|c} union.
func buildShouldGroup(clauses []document.Clause, tags map[string]bool) (string, error) {
	if len(clauses) == 0 {
		return "", nil
	}

	field := clauses[0].Field
	values := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if c.Kind != document.ClauseTerm || c.Field != field || isNumeric(c.Value) {
			values = nil
			break
		}
		values = append(values, tagEscaper.Replace(document.ValueString(c.Value)))
	}
	if values != nil {
		return fmt.Sprintf("@%s:{%s}", field, strings.Join(values, " | ")), nil
	}

	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		p, err := buildClause(c, tags)
		if err != nil {
			return "", err
		}
		parts = append(parts, p)
	}
	return "(" + strings.Join(parts, " | ") + ")", nil
}

func buildTagFilter(key, value string) string {
	escaped := tagEscaper.Replace(value)
	return fmt.Sprintf("@%s:{%s}", key, escaped)
}

func buildNumericFilter(key string, lower, upper *float64) string {
	minBound := "-inf"
	maxBound := "+inf"
	if lower != nil {
		minBound = strconv.FormatFloat(*lower, 'g', -1, 64)
	}
	if upper != nil {
		maxBound = strconv.FormatFloat(*upper, 'g', -1, 64)
	}
	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

// isNumeric reports whether a term value targets a NUMERIC field.
// Fingerprint bits (uint32) and strings are tags.
func isNumeric(v any) bool {
	switch v.(type) {
	case int, int64, float64:
		return true
	default:
		return false
	}
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

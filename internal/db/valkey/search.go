package valkey

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/adoptapet/internal/db"
	"github.com/kailas-cloud/adoptapet/internal/domain"
)

// SearchWeighted runs a weighted multi-field vector search.
//
// valkey-search ranks a KNN clause by a single vector field, so the store issues one
// filtered KNN per weighted field in a single DoMulti round-trip, unions the hits by key
// and re-scores every candidate exactly from the returned vectors:
//
//	score = sum(weight_f * (q . v_f))
//
// Vectors are unit length, so the dot product is the cosine similarity.
// A candidate missing a vector field gets no contribution from it.
func (s *Store) SearchWeighted(ctx context.Context, q *db.WeightedKNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %w", db.ErrRejected, err)}
	}

	ranked := rankedFields(q.Fields)
	returnFields := mergeReturnFields(q.ReturnFields, q.Fields)
	filterStr := buildFilter(q.Filters)
	blob := vectorToBytes(q.Vector)

	cmds := make([]rueidis.Completed, 0, len(ranked))
	for _, field := range ranked {
		args := buildKNNArgs(q.IndexName, filterStr, field, q.K, returnFields, blob)
		cmds = append(cmds, s.b().Arbitrary("FT.SEARCH").Args(args...).Build())
	}

	candidates := make(map[string]db.SearchEntry)
	for _, res := range s.client.DoMulti(ctx, cmds...) {
		raw, err := res.ToArray()
		if err != nil {
			return nil, wrapErr(db.OpSearch, err)
		}
		entries, err := parseSearchReply(raw)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %w", db.ErrRejected, err)}
		}
		for _, e := range entries {
			if _, seen := candidates[e.Key]; seen {
				continue
			}
			scored, ok := rescore(q, e)
			if !ok {
				continue
			}
			candidates[e.Key] = scored
		}
	}

	entries := make([]db.SearchEntry, 0, len(candidates))
	for _, e := range candidates {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b db.SearchEntry) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	if len(entries) > q.K {
		entries = entries[:q.K]
	}

	return &db.SearchResult{Total: len(candidates), Entries: entries}, nil
}

// rankedFields returns the vector fields worth a KNN clause: those with positive weight.
func rankedFields(fields []db.VectorWeight) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Weight > 0 {
			out = append(out, f.Field)
		}
	}
	if len(out) == 0 {
		for _, f := range fields {
			out = append(out, f.Field)
		}
	}
	return out
}

func mergeReturnFields(requested []string, vectors []db.VectorWeight) []string {
	out := slices.Clone(requested)
	for _, v := range vectors {
		if !slices.Contains(out, v.Field) {
			out = append(out, v.Field)
		}
	}
	return out
}

func buildKNNArgs(index, filterStr, field string, k int, returnFields []string, blob string) []string {
	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB]", k, field)
	var queryStr string
	if filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	} else {
		queryStr = "*=>" + knnPart
	}

	args := []string{index, queryStr}
	if len(returnFields) > 0 {
		args = append(args, "RETURN", strconv.Itoa(len(returnFields)))
		args = append(args, returnFields...)
	}
	return append(args,
		"PARAMS", "2", "BLOB", blob,
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	)
}

// rescore computes the exact combined score and strips vector blobs from the fields.
// Entries whose vectors cannot be decoded or compared are dropped.
func rescore(q *db.WeightedKNNQuery, e db.SearchEntry) (db.SearchEntry, bool) {
	var score float64
	for _, f := range q.Fields {
		blob, ok := e.Fields[f.Field]
		delete(e.Fields, f.Field)
		if !ok || blob == "" {
			continue
		}
		v, err := bytesToVector(blob)
		if err != nil {
			return db.SearchEntry{}, false
		}
		cos, err := domain.Dot(q.Vector, v)
		if err != nil {
			return db.SearchEntry{}, false
		}
		score += f.Weight * cos
	}
	delete(e.Fields, "__vector_score")
	e.Score = score
	return e, true
}

// parseSearchReply decodes a RESP2 FT.SEARCH reply: [total, key1, fields1, key2, fields2, ...].
func parseSearchReply(raw []rueidis.RedisMessage) ([]db.SearchEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	entries := make([]db.SearchEntry, 0, (len(raw)-1)/2)
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

	return entries, nil
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

// buildFilter translates tag matches into an FT.SEARCH pre-filter (implicit AND).
func buildFilter(matches []db.TagMatch) string {
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", m.Field, tagEscaper.Replace(m.Value)))
	}
	return strings.Join(parts, " ")
}

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
	" ", "\\ ",
)

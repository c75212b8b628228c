package sqlite

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/slatehq/slate/internal/types"
)

const defaultSearchLimit = 50

// SearchIssues runs a sanitized full-text query over issue title and
// description. Each surviving token becomes a quoted phrase and tokens are
// joined with implicit AND. If the FTS query still fails on adversarial input,
// the search falls back to a plain substring match on title with its own
// escaping; the caller never sees a syntax error.
func (s *SQLiteStorage) SearchIssues(ctx context.Context, query string, limit int) ([]*types.SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ftsQuery := sanitizeMatchQuery(query)
	if ftsQuery == "" {
		// Empty input after stripping matches nothing.
		return []*types.SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id,
			snippet(issues_fts, 0, '<mark>', '</mark>', '…', 16),
			snippet(issues_fts, 1, '<mark>', '</mark>', '…', 16),
			bm25(issues_fts)
		FROM issues_fts
		JOIN issues i ON i.rowid = issues_fts.rowid
		WHERE issues_fts MATCH ?
		ORDER BY bm25(issues_fts)
		LIMIT ?
	`, ftsQuery, limit)
	if err != nil {
		return s.searchIssuesSubstring(ctx, query, limit)
	}
	defer func() { _ = rows.Close() }()

	type hit struct {
		id           string
		titleSnippet string
		descSnippet  string
		rank         float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.id, &h.titleSnippet, &h.descSnippet, &h.rank); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return s.searchIssuesSubstring(ctx, query, limit)
	}

	results := make([]*types.SearchResult, 0, len(hits))
	for _, h := range hits {
		issue, err := s.GetIssue(ctx, h.id)
		if err != nil {
			// Row deleted between the index query and the read; skip it.
			continue
		}
		results = append(results, &types.SearchResult{
			Issue:        issue,
			TitleSnippet: h.titleSnippet,
			DescSnippet:  h.descSnippet,
			Rank:         h.rank,
		})
	}
	return results, nil
}

// searchIssuesSubstring is the fallback path: a LIKE match on title only. The
// pattern escaping here neutralizes LIKE metacharacters, which are distinct
// from the FTS query syntax and must not be conflated with it.
func (s *SQLiteStorage) searchIssuesSubstring(ctx context.Context, query string, limit int) ([]*types.SearchResult, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM issues
		WHERE title LIKE ? ESCAPE '\'
		ORDER BY number ASC
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]*types.SearchResult, 0, len(ids))
	for _, id := range ids {
		issue, err := s.GetIssue(ctx, id)
		if err != nil {
			continue
		}
		results = append(results, &types.SearchResult{
			Issue:          issue,
			SubstringMatch: true,
		})
	}
	return results, nil
}

// sanitizeMatchQuery strips characters with special meaning in the FTS5 query
// syntax, splits on whitespace, and wraps each surviving token as a quoted
// literal phrase joined with implicit AND.
func sanitizeMatchQuery(text string) string {
	parts := strings.Fields(text)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return unicode.ToLower(r)
			}
			return -1
		}, part)
		if token == "" {
			continue
		}
		tokens = append(tokens, `"`+token+`"`)
	}
	return strings.Join(tokens, " ")
}

// escapeLike escapes the LIKE pattern metacharacters with backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

package docstore

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/bassista/snapgram/internal/remote"
)

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 25

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// validateQuery rejects queries that no backend could evaluate consistently.
func validateQuery(q remote.Query) error {
	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return fmt.Errorf("%w: bad filter field %q", remote.ErrInvalidArgument, f.Field)
		}
	}
	if q.Search != nil && !fieldName.MatchString(q.Search.Field) {
		return fmt.Errorf("%w: bad search field %q", remote.ErrInvalidArgument, q.Search.Field)
	}
	switch q.OrderBy {
	case "", remote.SortCreatedAt, remote.SortUpdatedAt:
	default:
		return fmt.Errorf("%w: bad sort field %q", remote.ErrInvalidArgument, q.OrderBy)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", remote.ErrInvalidArgument)
	}
	return nil
}

func validateRef(collection, id string) error {
	if collection == "" {
		return fmt.Errorf("%w: collection is required", remote.ErrInvalidArgument)
	}
	if id == "" {
		return fmt.Errorf("%w: document id is required", remote.ErrInvalidArgument)
	}
	return nil
}

// applyQuery evaluates q over an unordered document set. It is shared by the
// backends that cannot push the query down to the storage engine.
func applyQuery(docs []remote.Document, q remote.Query) (remote.Page, error) {
	if err := validateQuery(q); err != nil {
		return remote.Page{}, err
	}

	matched := make([]remote.Document, 0, len(docs))
	for _, doc := range docs {
		if matches(doc, q) {
			matched = append(matched, doc)
		}
	}

	sortDocuments(matched, q.OrderBy)

	start := 0
	if q.CursorAfter != "" {
		var cursor *remote.Document
		for i := range docs {
			if docs[i].ID == q.CursorAfter {
				cursor = &docs[i]
				break
			}
		}
		if cursor == nil {
			return remote.Page{}, fmt.Errorf("cursor document %s: %w", q.CursorAfter, remote.ErrNotFound)
		}
		// Position strictly after the cursor in (sort key desc, id desc) order,
		// whether or not the cursor itself matches the filters.
		ck := sortKey(*cursor, q.OrderBy)
		start = len(matched)
		for i := range matched {
			k := sortKey(matched[i], q.OrderBy)
			if k < ck || (k == ck && matched[i].ID < cursor.ID) {
				start = i
				break
			}
		}
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	page := remote.Page{Documents: make([]remote.Document, 0, end-start), Total: len(matched)}
	for _, doc := range matched[start:end] {
		cloned, err := remote.CloneDocument(doc)
		if err != nil {
			return remote.Page{}, fmt.Errorf("clone document: %w", err)
		}
		page.Documents = append(page.Documents, cloned)
	}
	return page, nil
}

func matches(doc remote.Document, q remote.Query) bool {
	for _, f := range q.Filters {
		if f.Contains {
			if !listContains(doc, f.Field, f.Value) {
				return false
			}
			continue
		}
		if fieldString(doc, f.Field) != f.Value {
			return false
		}
	}
	if q.Search != nil {
		text := strings.ToLower(fieldString(doc, q.Search.Field))
		for _, word := range strings.Fields(strings.ToLower(q.Search.Term)) {
			if !strings.Contains(text, word) {
				return false
			}
		}
	}
	return true
}

func fieldString(doc remote.Document, field string) string {
	v, ok := doc.Fields[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// listContains handles both freshly written []string fields and []any after a
// JSON round trip.
func listContains(doc remote.Document, field, value string) bool {
	switch list := doc.Fields[field].(type) {
	case []string:
		return slices.Contains(list, value)
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok && s == value {
				return true
			}
		}
	}
	return false
}

// sortDocuments orders by the sort timestamp descending, ties broken by id descending.
func sortDocuments(docs []remote.Document, by remote.SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := sortKey(docs[i], by), sortKey(docs[j], by)
		if a != b {
			return a > b
		}
		return docs[i].ID > docs[j].ID
	})
}

func sortKey(doc remote.Document, by remote.SortField) int64 {
	if by == remote.SortUpdatedAt {
		return doc.UpdatedAt.UnixNano()
	}
	return doc.CreatedAt.UnixNano()
}

// mergeFields copies update into a fresh map layered over current.
func mergeFields(current, update map[string]any) map[string]any {
	merged := make(map[string]any, len(current)+len(update))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}

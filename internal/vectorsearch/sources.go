package vectorsearch

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Source is a table whose rows are turned into searchable text. Query must
// return (id BIGINT, content TEXT).
type Source struct {
	Name  string
	Query string
}

// DefaultSources covers the dvdrental tables worth searching by meaning.
var DefaultSources = []Source{
	{
		Name: "film",
		Query: `
SELECT DISTINCT ON (f.film_id)
	f.film_id,
	format(E'Title: %s\nDescription: %s\nCategory: %s\nYear: %s\nRating: %s',
		f.title, f.description, COALESCE(c.name, 'Unknown'), f.release_year, f.rating)
FROM film f
LEFT JOIN film_category fc ON f.film_id = fc.film_id
LEFT JOIN category c ON fc.category_id = c.category_id
ORDER BY f.film_id`,
	},
	{
		Name: "actor",
		Query: `
SELECT
	a.actor_id,
	format(E'Actor: %s %s\nFilms: %s',
		a.first_name, a.last_name, COALESCE(STRING_AGG(f.title, ', '), 'No films'))
FROM actor a
LEFT JOIN film_actor fa ON a.actor_id = fa.actor_id
LEFT JOIN film f ON fa.film_id = f.film_id
GROUP BY a.actor_id, a.first_name, a.last_name
ORDER BY a.actor_id`,
	},
	{
		Name: "customer",
		Query: `
SELECT
	c.customer_id,
	format(E'Customer: %s %s\nEmail: %s\nLocation: %s, %s, %s\nTotal Rentals: %s',
		c.first_name, c.last_name, c.email, a.address, ci.city, co.country, COUNT(r.rental_id))
FROM customer c
LEFT JOIN address a ON c.address_id = a.address_id
LEFT JOIN city ci ON a.city_id = ci.city_id
LEFT JOIN country co ON ci.country_id = co.country_id
LEFT JOIN rental r ON c.customer_id = r.customer_id
GROUP BY c.customer_id, c.first_name, c.last_name, c.email, a.address, ci.city, co.country
ORDER BY c.customer_id`,
	},
	{
		Name: "category",
		Query: `
SELECT
	c.category_id,
	format(E'Category: %s\nFilm Count: %s\nFilms: %s',
		c.name, COUNT(fc.film_id),
		COALESCE(LEFT(STRING_AGG(f.title, ', ' ORDER BY f.title), 500), 'No films'))
FROM category c
LEFT JOIN film_category fc ON c.category_id = fc.category_id
LEFT JOIN film f ON fc.film_id = f.film_id
GROUP BY c.category_id, c.name
ORDER BY c.category_id`,
	},
}

// routeAliases maps the plural path segments of /vector-search/{source} to
// source table names.
var routeAliases = map[string]string{
	"films":      "film",
	"actors":     "actor",
	"customers":  "customer",
	"categories": "category",
}

// SourceForRoute resolves a path segment such as "films" to "film".
func SourceForRoute(segment string) (string, bool) {
	src, ok := routeAliases[segment]
	return src, ok
}

// RouteNames lists the accepted path segments.
func RouteNames() []string {
	out := make([]string, 0, len(routeAliases))
	for k := range routeAliases {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SelectSources returns the named sources from all, in the order of all.
// An empty names list selects everything.
func SelectSources(all []Source, names []string) ([]Source, error) {
	if len(names) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Source
	for _, s := range all {
		if want[s.Name] {
			out = append(out, s)
			delete(want, s.Name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown source %q", n)
	}
	return out, nil
}

// SQLReader reads source rows from the relational store.
type SQLReader struct {
	db *sql.DB
}

func NewSQLReader(db *sql.DB) *SQLReader {
	return &SQLReader{db: db}
}

func (r *SQLReader) Read(ctx context.Context, src Source) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, src.Query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("scan %s: %w", src.Name, err)
		}
		docs = append(docs, Document{
			SourceTable: src.Name,
			SourceID:    id,
			Content:     content,
			Metadata:    map[string]any{"type": src.Name},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name, err)
	}
	return docs, nil
}

// WithQueries replaces the query of any source named in overrides and
// appends overrides that name a new source, in sorted order.
func WithQueries(all []Source, overrides map[string]string) []Source {
	out := make([]Source, 0, len(all)+len(overrides))
	seen := make(map[string]bool, len(all))
	for _, s := range all {
		if q := overrides[s.Name]; q != "" {
			s.Query = q
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	extra := make([]string, 0, len(overrides))
	for name, q := range overrides {
		if !seen[name] && q != "" {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	for _, name := range extra {
		out = append(out, Source{Name: name, Query: overrides[name]})
	}
	return out
}

package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/termmeta/internal/metaquery"
	"github.com/mesh-intelligence/termmeta/pkg/types"
)

// Base pieces of a term listing. Terms are aliased t, term_taxonomy tt.
const (
	listingFields  = "t.term_id, tt.term_taxonomy_id, t.name, t.slug, tt.taxonomy"
	listingOrderBy = " ORDER BY t.name ASC, t.term_id ASC"
)

// InsertTerm creates a term in taxonomy on the active site. An empty slug is
// derived from name.
func (b *Backend) InsertTerm(ctx context.Context, name, slug, taxonomy string) (types.Term, error) {
	if strings.TrimSpace(name) == "" {
		return types.Term{}, types.ErrInvalidName
	}
	if taxonomy == "" {
		return types.Term{}, types.ErrInvalidTaxonomy
	}
	if slug == "" {
		slug = Slugify(name)
	}
	db, d, err := b.conn()
	if err != nil {
		return types.Term{}, err
	}
	h := b.Handle()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return types.Term{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	term := types.Term{Name: name, Slug: slug, Taxonomy: taxonomy}
	err = tx.QueryRowContext(ctx, d.Rebind(
		"INSERT INTO "+h.Terms()+" (name, slug) VALUES (?, ?) RETURNING term_id"),
		name, slug).Scan(&term.TermID)
	if err != nil {
		return types.Term{}, fmt.Errorf("inserting term: %w", err)
	}
	err = tx.QueryRowContext(ctx, d.Rebind(
		"INSERT INTO "+h.TermTaxonomy()+" (term_id, taxonomy) VALUES (?, ?) RETURNING term_taxonomy_id"),
		term.TermID, taxonomy).Scan(&term.TermTaxonomyID)
	if err != nil {
		return types.Term{}, fmt.Errorf("inserting term taxonomy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Term{}, fmt.Errorf("committing transaction: %w", err)
	}
	return term, nil
}

// DeleteTerm removes a term from taxonomy on the active site. The term row
// goes too once no other taxonomy references it. Every TermDeleteObserver
// runs afterwards with the term id.
func (b *Backend) DeleteTerm(ctx context.Context, termID int64, taxonomy string) error {
	if termID <= 0 {
		return types.ErrInvalidObjectID
	}
	if taxonomy == "" {
		return types.ErrInvalidTaxonomy
	}
	db, d, err := b.conn()
	if err != nil {
		return err
	}
	h := b.Handle()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, d.Rebind(
		"DELETE FROM "+h.TermTaxonomy()+" WHERE term_id = ? AND taxonomy = ?"), termID, taxonomy)
	if err != nil {
		return fmt.Errorf("deleting term taxonomy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d in %s", types.ErrTermNotFound, termID, taxonomy)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, d.Rebind(
		"SELECT COUNT(*) FROM "+h.TermTaxonomy()+" WHERE term_id = ?"), termID).Scan(&remaining); err != nil {
		return fmt.Errorf("counting term taxonomies: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, d.Rebind("DELETE FROM "+h.Terms()+" WHERE term_id = ?"), termID); err != nil {
			return fmt.Errorf("deleting term: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	b.logger.Debug("term deleted", zap.Int64("term_id", termID), zap.String("taxonomy", taxonomy))

	for _, c := range b.snapshot() {
		if obs, ok := c.(types.TermDeleteObserver); ok {
			if err := obs.OnTermDeleted(ctx, termID); err != nil {
				return fmt.Errorf("term %d deleted, %s failed: %w", termID, c.Name(), err)
			}
		}
	}
	return nil
}

// BuildListing renders the term listing for args on the active site. The
// returned query is already rebound for the dialect.
func (b *Backend) BuildListing(ctx context.Context, args types.ListingArgs) (string, []any, error) {
	_, d, err := b.conn()
	if err != nil {
		return "", nil, err
	}

	components := b.snapshot()
	for _, c := range components {
		if f, ok := c.(types.ListingArgsFilter); ok {
			args = f.OnListingArgs(args)
		}
	}

	h := b.Handle()
	clauses := types.Clauses{
		Fields:  listingFields,
		Where:   "1=1",
		OrderBy: listingOrderBy,
	}
	if len(args.Taxonomies) > 0 {
		clauses.Where = "tt.taxonomy IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(args.Taxonomies)), ", ") + ")"
		for _, tax := range args.Taxonomies {
			clauses.WhereArgs = append(clauses.WhereArgs, tax)
		}
	}
	if args.Search != "" {
		like := "%" + metaquery.EscapeLike(args.Search) + "%"
		clauses.Where += ` AND ( t.name LIKE ? ESCAPE '\' OR t.slug LIKE ? ESCAPE '\' )`
		clauses.WhereArgs = append(clauses.WhereArgs, like, like)
	}
	if args.Number > 0 {
		clauses.Limits = " LIMIT " + strconv.Itoa(args.Number)
		if args.Offset > 0 {
			clauses.Limits += " OFFSET " + strconv.Itoa(args.Offset)
		}
	}

	for _, c := range components {
		if f, ok := c.(types.ListingClausesFilter); ok {
			clauses, err = f.OnListingClauses(ctx, clauses, args.Taxonomies, args)
			if err != nil {
				return "", nil, fmt.Errorf("listing filter %s: %w", c.Name(), err)
			}
		}
	}

	distinct := ""
	if clauses.Join != "" {
		distinct = "DISTINCT "
	}
	query := "SELECT " + distinct + clauses.Fields +
		" FROM " + h.Terms() + " AS t INNER JOIN " + h.TermTaxonomy() + " AS tt ON t.term_id = tt.term_id" +
		clauses.Join +
		" WHERE " + clauses.Where +
		clauses.OrderBy + clauses.Limits

	bind := make([]any, 0, len(clauses.JoinArgs)+len(clauses.WhereArgs))
	bind = append(bind, clauses.JoinArgs...)
	bind = append(bind, clauses.WhereArgs...)
	return d.Rebind(query), bind, nil
}

// ListTerms runs the term listing for args.
func (b *Backend) ListTerms(ctx context.Context, args types.ListingArgs) ([]types.Term, error) {
	query, bind, err := b.BuildListing(ctx, args)
	if err != nil {
		return nil, err
	}
	db, _, err := b.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, bind...)
	if err != nil {
		return nil, fmt.Errorf("listing terms: %w", err)
	}
	defer rows.Close()

	terms := []types.Term{}
	for rows.Next() {
		var t types.Term
		if err := rows.Scan(&t.TermID, &t.TermTaxonomyID, &t.Name, &t.Slug, &t.Taxonomy); err != nil {
			return nil, err
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

// Slugify lowercases s and joins its runs of letters and digits with "-".
func Slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return sb.String()
}

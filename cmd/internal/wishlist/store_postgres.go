package wishlist

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Concurrency model:
//   - MutateItem locks the item row (SELECT ... FOR UPDATE) for the whole
//     read-decide-write transaction, so writes to one item are serialized
//     across every process sharing the database.
//   - A partial unique index on active reservations backs the single-reservation
//     rule; a violation surfaces as ErrConflict.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "wishsync").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("wishlist: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("wishlist: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed Store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "wishsync",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("wishlist: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

const wishlistColumns = `id, owner_id, title, description, access_token, is_public, created_at`

const itemColumns = `id, wishlist_id, title, url, price_cents, currency, image_url, status, created_at`

// CreateWishlist inserts a wishlist.
func (s *PostgresStore) CreateWishlist(ctx context.Context, wl Wishlist) error {
	if wl.ID == "" || wl.OwnerID == "" || wl.AccessToken == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	wishlists := pgIdent(s.schema, "wishlists")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+wishlists+` (`+wishlistColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		wl.ID, wl.OwnerID, wl.Title, wl.Description, wl.AccessToken, wl.IsPublic, wl.CreatedAt,
	)
	if err != nil {
		return mapPGError("insert wishlist", err)
	}
	return nil
}

// GetWishlist fetches a wishlist by id.
func (s *PostgresStore) GetWishlist(ctx context.Context, id string) (Wishlist, error) {
	if err := ctx.Err(); err != nil {
		return Wishlist{}, err
	}
	wishlists := pgIdent(s.schema, "wishlists")
	return scanWishlist(s.pool.QueryRow(ctx,
		`SELECT `+wishlistColumns+` FROM `+wishlists+` WHERE id = $1`, id,
	))
}

// GetWishlistByToken fetches the wishlist owning accessToken.
func (s *PostgresStore) GetWishlistByToken(ctx context.Context, accessToken string) (Wishlist, error) {
	if err := ctx.Err(); err != nil {
		return Wishlist{}, err
	}
	wishlists := pgIdent(s.schema, "wishlists")
	return scanWishlist(s.pool.QueryRow(ctx,
		`SELECT `+wishlistColumns+` FROM `+wishlists+` WHERE access_token = $1`, accessToken,
	))
}

// ListWishlists returns the owner's wishlists with item counts, newest first.
func (s *PostgresStore) ListWishlists(ctx context.Context, ownerID string) ([]WishlistSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wishlists := pgIdent(s.schema, "wishlists")
	items := pgIdent(s.schema, "items")

	rows, err := s.pool.Query(ctx,
		`SELECT w.id, w.owner_id, w.title, w.description, w.access_token, w.is_public, w.created_at,
		        (SELECT count(*) FROM `+items+` i WHERE i.wishlist_id = w.id)
		   FROM `+wishlists+` w
		  WHERE w.owner_id = $1
		  ORDER BY w.created_at DESC, w.id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WishlistSummary, 0, 8)
	for rows.Next() {
		var ws WishlistSummary
		if err := rows.Scan(
			&ws.ID, &ws.OwnerID, &ws.Title, &ws.Description, &ws.AccessToken, &ws.IsPublic, &ws.CreatedAt,
			&ws.ItemCount,
		); err != nil {
			return nil, err
		}
		out = append(out, ws)
	}
	return out, rows.Err()
}

// UpdateWishlist applies fn to the locked wishlist row.
func (s *PostgresStore) UpdateWishlist(ctx context.Context, id string, fn func(wl *Wishlist) error) (Wishlist, error) {
	if err := ctx.Err(); err != nil {
		return Wishlist{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Wishlist{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	wishlists := pgIdent(s.schema, "wishlists")
	wl, err := scanWishlist(tx.QueryRow(ctx,
		`SELECT `+wishlistColumns+` FROM `+wishlists+` WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return Wishlist{}, err
	}

	next := wl
	if err := fn(&next); err != nil {
		return Wishlist{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+wishlists+`
		    SET title = $2, description = $3, is_public = $4
		  WHERE id = $1`,
		wl.ID, next.Title, next.Description, next.IsPublic,
	); err != nil {
		return Wishlist{}, fmt.Errorf("update wishlist: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Wishlist{}, err
	}

	wl.Title, wl.Description, wl.IsPublic = next.Title, next.Description, next.IsPublic
	return wl, nil
}

// CreateItem inserts an item; an unknown wishlist is ErrNotFound.
func (s *PostgresStore) CreateItem(ctx context.Context, it Item) error {
	if it.ID == "" || it.WishlistID == "" {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	items := pgIdent(s.schema, "items")
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+items+` (`+itemColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.ID, it.WishlistID, it.Title, it.URL, it.PriceCents, it.Currency, it.ImageURL, string(it.Status), it.CreatedAt,
	)
	if err != nil {
		return mapPGError("insert item", err)
	}
	return nil
}

// LoadItem reads an item and its history without locking.
func (s *PostgresStore) LoadItem(ctx context.Context, itemID string) (ItemRecord, error) {
	if err := ctx.Err(); err != nil {
		return ItemRecord{}, err
	}
	return s.loadItem(ctx, s.pool, itemID, false)
}

// LoadWishlistItems reads every item of a wishlist with history, in creation order.
func (s *PostgresStore) LoadWishlistItems(ctx context.Context, wishlistID string) ([]ItemRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := pgIdent(s.schema, "items")
	reservations := pgIdent(s.schema, "reservations")
	contributions := pgIdent(s.schema, "contributions")

	rows, err := s.pool.Query(ctx,
		`SELECT `+itemColumns+` FROM `+items+`
		  WHERE wishlist_id = $1
		  ORDER BY created_at ASC, id ASC`,
		wishlistID,
	)
	if err != nil {
		return nil, err
	}
	recs := make([]ItemRecord, 0, 16)
	index := make(map[string]int)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[it.ID] = len(recs)
		recs = append(recs, ItemRecord{Item: it})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return recs, nil
	}

	res, err := queryReservations(ctx, s.pool,
		`SELECT r.id, r.item_id, r.display_name, r.created_at, r.cancelled_at
		   FROM `+reservations+` r JOIN `+items+` i ON i.id = r.item_id
		  WHERE i.wishlist_id = $1
		  ORDER BY r.created_at ASC, r.id ASC`,
		wishlistID,
	)
	if err != nil {
		return nil, err
	}
	for _, r := range res {
		if i, ok := index[r.ItemID]; ok {
			recs[i].Reservations = append(recs[i].Reservations, r)
		}
	}

	cons, err := queryContributions(ctx, s.pool,
		`SELECT c.id, c.item_id, c.display_name, c.amount_cents, c.created_at
		   FROM `+contributions+` c JOIN `+items+` i ON i.id = c.item_id
		  WHERE i.wishlist_id = $1
		  ORDER BY c.created_at ASC, c.id ASC`,
		wishlistID,
	)
	if err != nil {
		return nil, err
	}
	for _, c := range cons {
		if i, ok := index[c.ItemID]; ok {
			recs[i].Contributions = append(recs[i].Contributions, c)
		}
	}
	return recs, nil
}

// MutateItem locks the item row, runs fn on the committed state and applies
// the returned change in the same transaction.
func (s *PostgresStore) MutateItem(ctx context.Context, itemID string, fn MutateFunc) (ItemRecord, error) {
	if err := ctx.Err(); err != nil {
		return ItemRecord{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return ItemRecord{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := s.loadItem(ctx, tx, itemID, true)
	if err != nil {
		return ItemRecord{}, err
	}

	change, err := fn(rec.clone())
	if err != nil {
		return ItemRecord{}, err
	}
	if change.Empty() {
		return rec, nil
	}

	items := pgIdent(s.schema, "items")
	reservations := pgIdent(s.schema, "reservations")
	contributions := pgIdent(s.schema, "contributions")

	if u := change.UpdateItem; u != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE `+items+`
			    SET title = $2, url = $3, price_cents = $4, currency = $5, image_url = $6, status = $7
			  WHERE id = $1`,
			itemID, u.Title, u.URL, u.PriceCents, u.Currency, u.ImageURL, string(u.Status),
		); err != nil {
			return ItemRecord{}, fmt.Errorf("update item: %w", err)
		}
	}
	if at := change.CancelReservations; at != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE `+reservations+`
			    SET cancelled_at = $2
			  WHERE item_id = $1 AND cancelled_at IS NULL`,
			itemID, *at,
		); err != nil {
			return ItemRecord{}, fmt.Errorf("cancel reservation: %w", err)
		}
	}
	if r := change.AddReservation; r != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO `+reservations+` (id, item_id, display_name, created_at)
			 VALUES ($1, $2, $3, $4)`,
			r.ID, itemID, r.DisplayName, r.CreatedAt,
		); err != nil {
			return ItemRecord{}, mapPGError("insert reservation", err)
		}
	}
	if c := change.AddContribution; c != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO `+contributions+` (id, item_id, display_name, amount_cents, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ID, itemID, c.DisplayName, c.AmountCents, c.CreatedAt,
		); err != nil {
			return ItemRecord{}, mapPGError("insert contribution", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ItemRecord{}, err
	}

	change.apply(&rec)
	return rec, nil
}

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PostgresStore) loadItem(ctx context.Context, q pgQuerier, itemID string, forUpdate bool) (ItemRecord, error) {
	items := pgIdent(s.schema, "items")
	reservations := pgIdent(s.schema, "reservations")
	contributions := pgIdent(s.schema, "contributions")

	query := `SELECT ` + itemColumns + ` FROM ` + items + ` WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	it, err := scanItem(q.QueryRow(ctx, query, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return ItemRecord{}, ErrNotFound
	}
	if err != nil {
		return ItemRecord{}, err
	}

	rec := ItemRecord{Item: it}
	rec.Reservations, err = queryReservations(ctx, q,
		`SELECT id, item_id, display_name, created_at, cancelled_at
		   FROM `+reservations+`
		  WHERE item_id = $1
		  ORDER BY created_at ASC, id ASC`,
		itemID,
	)
	if err != nil {
		return ItemRecord{}, err
	}
	rec.Contributions, err = queryContributions(ctx, q,
		`SELECT id, item_id, display_name, amount_cents, created_at
		   FROM `+contributions+`
		  WHERE item_id = $1
		  ORDER BY created_at ASC, id ASC`,
		itemID,
	)
	if err != nil {
		return ItemRecord{}, err
	}
	return rec, nil
}

func queryReservations(ctx context.Context, q pgQuerier, sql string, arg string) ([]Reservation, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.ItemID, &r.DisplayName, &r.CreatedAt, &r.CancelledAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryContributions(ctx context.Context, q pgQuerier, sql string, arg string) ([]Contribution, error) {
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var c Contribution
		if err := rows.Scan(&c.ID, &c.ItemID, &c.DisplayName, &c.AmountCents, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanWishlist(row pgx.Row) (Wishlist, error) {
	var wl Wishlist
	err := row.Scan(&wl.ID, &wl.OwnerID, &wl.Title, &wl.Description, &wl.AccessToken, &wl.IsPublic, &wl.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wishlist{}, ErrNotFound
	}
	return wl, err
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		it     Item
		status string
	)
	if err := row.Scan(
		&it.ID, &it.WishlistID, &it.Title, &it.URL, &it.PriceCents, &it.Currency, &it.ImageURL, &status, &it.CreatedAt,
	); err != nil {
		return Item{}, err
	}
	it.Status = ItemStatus(status)
	return it, nil
}

// mapPGError turns constraint violations into domain kinds.
func mapPGError(what string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", what, ErrConflict)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}

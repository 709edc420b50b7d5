package repository

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql" // registers the mysql dialect
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/library-borrowing/internal/model"
)

const (
	dialectMySQL = "mysql"
	tableBooks   = "books"
)

var bookColumns = []any{"id", "title", "author", "cover", "inventory", "daily_fee"}

// BookQuery defines filters & pagination for listing books.  Title and
// Author match case-insensitive substrings; empty strings match all.
type BookQuery struct {
	Title    string
	Author   string
	Page     int
	PageSize int
}

// BookRepo reads and writes the books table.
type BookRepo struct{ db *sqlx.DB }

func NewBookRepo(db *sqlx.DB) *BookRepo { return &BookRepo{db: db} }

// likeEscaper makes LIKE wildcards in user input match literally; MySQL's
// default LIKE escape character is the backslash.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (q BookQuery) where() []goqu.Expression {
	var where []goqu.Expression
	if t := strings.TrimSpace(q.Title); t != "" {
		where = append(where, goqu.C("title").ILike(containsPattern(t)))
	}
	if a := strings.TrimSpace(q.Author); a != "" {
		where = append(where, goqu.C("author").ILike(containsPattern(a)))
	}
	return where
}

// buildBookListQueries returns the page query and the matching count query.
func buildBookListQueries(q BookQuery) (dataSQL string, dataArgs []any, countSQL string, countArgs []any, err error) {
	base := goqu.Dialect(dialectMySQL).From(tableBooks).Prepared(true).Where(q.where()...)

	countSQL, countArgs, err = base.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return "", nil, "", nil, err
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	ds := base.Select(bookColumns...).Order(goqu.I("id").Asc())
	if size > 0 {
		ds = ds.Limit(uint(size)).Offset(uint((page - 1) * size))
	}
	dataSQL, dataArgs, err = ds.ToSQL()
	return dataSQL, dataArgs, countSQL, countArgs, err
}

// List returns one page of books ordered by id and the total number of
// books that match the filters.
func (r *BookRepo) List(ctx context.Context, q BookQuery) ([]model.Book, int64, error) {
	dataSQL, dataArgs, countSQL, countArgs, err := buildBookListQueries(q)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, translate(err)
	}
	out := make([]model.Book, 0)
	if err := r.db.SelectContext(ctx, &out, dataSQL, dataArgs...); err != nil {
		return nil, 0, translate(err)
	}
	return out, total, nil
}

// GetByID loads a single book.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	var b model.Book
	err := r.db.GetContext(ctx, &b,
		"SELECT id, title, author, cover, inventory, daily_fee FROM books WHERE id=?", id)
	return b, translate(err)
}

// Create inserts b and sets its ID.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO books (title, author, cover, inventory, daily_fee) VALUES (?,?,?,?,?)",
		b.Title, b.Author, b.Cover, b.Inventory, b.DailyFee)
	if err != nil {
		return translate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// Update overwrites every column of the book identified by b.ID.
func (r *BookRepo) Update(ctx context.Context, b model.Book) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE books SET title=?, author=?, cover=?, inventory=?, daily_fee=? WHERE id=?",
		b.Title, b.Author, b.Cover, b.Inventory, b.DailyFee, b.ID)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

// Delete removes a book; its borrowings go with it (ON DELETE CASCADE).
func (r *BookRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM books WHERE id=?", id)
	if err != nil {
		return translate(err)
	}
	return expectOne(res)
}

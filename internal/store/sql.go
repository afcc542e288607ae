package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	sqlite3 "github.com/mattn/go-sqlite3"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/internal/auth"
	"github.com/msto63/flatset/internal/flat"
)

type dialect struct {
	name      string
	driver    string
	serialKey string
	numbered  bool
}

var (
	dialectSQLite = dialect{
		name:      "sqlite",
		driver:    "sqlite3",
		serialKey: "INTEGER PRIMARY KEY AUTOINCREMENT",
	}
	dialectPostgres = dialect{
		name:      "postgres",
		driver:    "pgx",
		serialKey: "BIGSERIAL PRIMARY KEY",
		numbered:  true,
	}
)

// rebind turns ? placeholders into $n for dialects that need it
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id ` + d.serialKey + `,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS houses (
			id ` + d.serialKey + `,
			name TEXT NOT NULL,
			year INTEGER NOT NULL,
			number_of_flats_on_floor INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS flats (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			creation_date TEXT NOT NULL,
			area BIGINT NOT NULL,
			number_of_rooms BIGINT NOT NULL,
			is_new BOOLEAN,
			time_to_metro_by_transport DOUBLE PRECISION NOT NULL,
			flat_view TEXT NOT NULL,
			house_id BIGINT REFERENCES houses(id),
			owner_id BIGINT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flats_owner ON flats(owner_id)`,
	}
}

// SQLStore persists the collection in the users/houses/flats tables of a
// SQLite or PostgreSQL database. It also stores users.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	target  string
	logger  *mdwlog.Logger
	mu      sync.Mutex
}

// OpenSQLite opens (and creates) the database file at path
func OpenSQLite(ctx context.Context, path string, logger *mdwlog.Logger) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, mdwerror.Wrap(err, "failed to create database directory").WithCode(mdwerror.CodeIOError)
	}
	db, err := sql.Open(dialectSQLite.driver, path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, dbError(err, "failed to open database")
	}
	return newSQLStore(ctx, db, dialectSQLite, "sqlite:"+path, logger)
}

// OpenPostgres connects to the database named by dsn
func OpenPostgres(ctx context.Context, dsn string, logger *mdwlog.Logger) (*SQLStore, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, mdwerror.Wrap(err, "invalid postgres dsn").
			WithCode(mdwerror.CodeConfigError).WithDetail("field", "store.dsn")
	}
	db, err := sql.Open(dialectPostgres.driver, dsn)
	if err != nil {
		return nil, dbError(err, "failed to open database")
	}
	target := fmt.Sprintf("postgres:%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
	return newSQLStore(ctx, db, dialectPostgres, target, logger)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, target string, logger *mdwlog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = mdwlog.NewNop()
	}
	s := &SQLStore{db: db, dialect: d, target: target, logger: logger}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, dbError(err, "database unreachable")
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("database ready", mdwlog.Fields{"target": target})
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return dbError(err, "failed to initialize schema")
		}
	}
	return nil
}

// Describe implements Store
func (s *SQLStore) Describe() string {
	return s.target
}

// Ping checks the connection; used by the health endpoint
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close implements Store
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Load implements Store
func (s *SQLStore) Load(ctx context.Context) ([]*flat.Flat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.x, f.y, f.creation_date, f.area, f.number_of_rooms,
			f.is_new, f.time_to_metro_by_transport, f.flat_view, f.owner_id,
			h.name, h.year, h.number_of_flats_on_floor
		FROM flats f LEFT JOIN houses h ON f.house_id = h.id
		ORDER BY f.id`)
	if err != nil {
		return nil, dbError(err, "failed to query flats")
	}
	defer rows.Close()

	var flats []*flat.Flat
	for rows.Next() {
		var (
			f          flat.Flat
			created    string
			view       string
			isNew      sql.NullBool
			owner      sql.NullInt64
			houseName  sql.NullString
			houseYear  sql.NullInt64
			houseFlats sql.NullInt64
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Coordinates.X, &f.Coordinates.Y, &created, &f.Area, &f.Rooms,
			&isNew, &f.TransitMinutes, &view, &owner, &houseName, &houseYear, &houseFlats); err != nil {
			return nil, dbError(err, "failed to scan flat")
		}

		if f.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, mdwerror.Wrapf(err, "flat %d has invalid creation_date", f.ID).WithCode(mdwerror.CodeInvalidFormat)
		}
		if f.View, err = flat.ParseView(view); err != nil {
			return nil, mdwerror.Wrapf(err, "flat %d", f.ID)
		}
		if isNew.Valid {
			f.IsNew = flat.Bool(isNew.Bool)
		}
		if owner.Valid {
			f.OwnerID = flat.Int64(owner.Int64)
		}
		if houseName.Valid {
			f.House = &flat.House{Name: houseName.String, Year: int(houseYear.Int64), FlatsPerFloor: int(houseFlats.Int64)}
		}
		if err := f.Validate(); err != nil {
			return nil, mdwerror.Wrapf(err, "flat %d", f.ID)
		}
		flats = append(flats, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to read flats")
	}
	return flats, nil
}

// Save implements Store. The tables are replaced in one transaction.
func (s *SQLStore) Save(ctx context.Context, flats []*flat.Flat) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{`DELETE FROM flats`, `DELETE FROM houses`} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return dbError(err, "failed to clear tables")
		}
	}

	insertHouse := s.dialect.rebind(`INSERT INTO houses (name, year, number_of_flats_on_floor) VALUES (?, ?, ?) RETURNING id`)
	insertFlat := s.dialect.rebind(`INSERT INTO flats (id, name, x, y, creation_date, area, number_of_rooms, is_new,
		time_to_metro_by_transport, flat_view, house_id, owner_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for _, f := range flats {
		var houseID sql.NullInt64
		if f.House != nil {
			if err = tx.QueryRowContext(ctx, insertHouse, f.House.Name, f.House.Year, f.House.FlatsPerFloor).Scan(&houseID.Int64); err != nil {
				return dbError(err, "failed to insert house")
			}
			houseID.Valid = true
		}

		var isNew sql.NullBool
		if f.IsNew != nil {
			isNew = sql.NullBool{Bool: *f.IsNew, Valid: true}
		}
		var owner sql.NullInt64
		if f.OwnerID != nil {
			owner = sql.NullInt64{Int64: *f.OwnerID, Valid: true}
		}

		if _, err = tx.ExecContext(ctx, insertFlat, f.ID, f.Name, f.Coordinates.X, f.Coordinates.Y,
			f.CreatedAt.Format(time.RFC3339Nano), f.Area, f.Rooms, isNew, f.TransitMinutes, f.View.String(),
			houseID, owner); err != nil {
			return dbError(err, "failed to insert flat")
		}
	}

	if err = tx.Commit(); err != nil {
		return dbError(err, "failed to commit")
	}
	s.logger.Debug("flats saved", mdwlog.Fields{"target": s.target, "count": len(flats)})
	return nil
}

// CreateUser implements auth.UserStore
func (s *SQLStore) CreateUser(ctx context.Context, username, passwordHash string) (*auth.UserRecord, error) {
	rec := &auth.UserRecord{Username: username, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id`),
		username, passwordHash, rec.CreatedAt.Format(time.RFC3339Nano)).Scan(&rec.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, mdwerror.Newf("user %q already exists", username).
				WithCode(mdwerror.CodeDuplicateEntry).WithDetail("username", username)
		}
		return nil, dbError(err, "failed to create user")
	}
	return rec, nil
}

// FindUser implements auth.UserStore
func (s *SQLStore) FindUser(ctx context.Context, username string) (*auth.UserRecord, error) {
	var (
		rec     auth.UserRecord
		created string
	)
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`),
		username).Scan(&rec.ID, &rec.Username, &rec.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, mdwerror.NotFound("user %q not found", username)
	}
	if err != nil {
		return nil, dbError(err, "failed to look up user")
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &rec, nil
}

func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func dbError(err error, message string) error {
	return mdwerror.Wrap(err, message).WithCode(mdwerror.CodeDatabaseError)
}

// Package sqlitestore keeps vectors and matrices in a single SQLite file. It
// is an alternative to one array text file per vector when a run produces
// many small snapshots.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hammal/modred/vectors"
	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no array is stored under a key.
var ErrNotFound = errors.New("sqlitestore: array not found")

// SQLite stores dense arrays keyed by name.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the store at path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The pragmas are per connection and ranks write concurrently.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) init() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("pragma failed: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS arrays (
			key  TEXT PRIMARY KEY,
			rows INTEGER NOT NULL,
			cols INTEGER NOT NULL,
			data BLOB NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}
	return nil
}

// Path returns the database file.
func (s *SQLite) Path() string { return s.path }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

// SaveMatrix stores m under key, replacing any previous array.
func (s *SQLite) SaveMatrix(ctx context.Context, key string, m mat.Matrix) error {
	r, c := m.Dims()
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO arrays (key, rows, cols, data) VALUES (?, ?, ?, ?)",
		key, r, c, encodeFloat64s(m))
	return err
}

// LoadMatrix returns the array stored under key.
func (s *SQLite) LoadMatrix(ctx context.Context, key string) (*mat.Dense, error) {
	var (
		r, c int
		blob []byte
	)
	err := s.db.QueryRowContext(ctx, "SELECT rows, cols, data FROM arrays WHERE key = ?", key).Scan(&r, &c, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	if len(blob) != 8*r*c || r == 0 || c == 0 {
		return nil, fmt.Errorf("sqlitestore: %q has %d bytes for a %dx%d array", key, len(blob), r, c)
	}
	return mat.NewDense(r, c, decodeFloat64s(blob)), nil
}

// Delete removes the arrays stored under keys.
func (s *SQLite) Delete(ctx context.Context, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "DELETE FROM arrays WHERE key = ?")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, key := range keys {
		if _, err := stmt.ExecContext(ctx, key); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Keys returns the stored keys in lexical order.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM arrays ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Put and Get match the matrix saver and loader slots of pod, bpod and rom.

// Put stores m under key.
func (s *SQLite) Put(m mat.Matrix, key string) error {
	return s.SaveMatrix(context.Background(), key, m)
}

// Get loads the matrix stored under key.
func (s *SQLite) Get(key string) (*mat.Dense, error) {
	return s.LoadMatrix(context.Background(), key)
}

// Handle returns a vector handle stored under key.
func (s *SQLite) Handle(key string) vectors.Handle {
	return Handle{store: s, Key: key}
}

// Handles returns one handle per index with the key
// fmt.Sprintf(template, index).
func (s *SQLite) Handles(template string, indices []int) []vectors.Handle {
	res := make([]vectors.Handle, len(indices))
	for i, index := range indices {
		res[i] = s.Handle(fmt.Sprintf(template, index))
	}
	return res
}

// Handle is a vector stored as a column in a SQLite store.
type Handle struct {
	store *SQLite
	Key   string
}

// Get loads the vector.
func (h Handle) Get() (*mat.VecDense, error) {
	m, err := h.store.Get(h.Key)
	if err != nil {
		return nil, err
	}
	r, c := m.Dims()
	if r != 1 && c != 1 {
		return nil, fmt.Errorf("sqlitestore: %q holds a %dx%d array, not a vector", h.Key, r, c)
	}
	return mat.NewVecDense(r*c, m.RawMatrix().Data), nil
}

// Put stores v.
func (h Handle) Put(v mat.Vector) error {
	return h.store.Put(v, h.Key)
}

func encodeFloat64s(m mat.Matrix) []byte {
	r, c := m.Dims()
	buf := make([]byte, 8*r*c)
	for row := 0; row < r; row++ {
		for col := 0; col < c; col++ {
			binary.LittleEndian.PutUint64(buf[8*(row*c+col):], math.Float64bits(m.At(row, col)))
		}
	}
	return buf
}

func decodeFloat64s(buf []byte) []float64 {
	res := make([]float64, len(buf)/8)
	for i := range res {
		res[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return res
}

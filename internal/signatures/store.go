package signatures

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/funvibe/tyunify/internal/typesystem"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS signatures (
	name     TEXT PRIMARY KEY,
	params   TEXT NOT NULL,
	ret      TEXT NOT NULL,
	variadic INTEGER NOT NULL DEFAULT 0,
	requires TEXT NOT NULL DEFAULT ''
)`

// Store is an sqlite database of signatures, typically generated in bulk
// from stub files. Parameter lists are stored in the textual type syntax.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the signature database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening signature store %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing signature store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes every signature of t, replacing rows with the same name.
func (s *Store) Save(ctx context.Context, t *Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO signatures (name, params, ret, variadic, requires) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, name := range t.Names() {
		sig := t.sigs[name]
		variadic := 0
		if sig.Variadic {
			variadic = 1
		}
		if _, err := stmt.ExecContext(ctx, sig.Name, typesystem.FormatTypeList(sig.Params),
			sig.Ret.String(), variadic, sig.Requires); err != nil {
			return fmt.Errorf("saving signature %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// Load reads every stored signature.
func (s *Store) Load(ctx context.Context) (*Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, params, ret, variadic, requires FROM signatures ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying signature store: %w", err)
	}
	defer rows.Close()

	t := NewTable()
	for rows.Next() {
		var (
			name, params, ret, requires string
			variadic                    int
		)
		if err := rows.Scan(&name, &params, &ret, &variadic, &requires); err != nil {
			return nil, err
		}
		sig, err := decodeRow(name, params, ret, variadic != 0, requires)
		if err != nil {
			return nil, err
		}
		if err := t.Add(sig); err != nil {
			return nil, fmt.Errorf("stored signature %s: %w", name, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func decodeRow(name, params, ret string, variadic bool, requires string) (*Signature, error) {
	ps, err := typesystem.ParseTypeList(params)
	if err != nil {
		return nil, fmt.Errorf("stored signature %s params: %w", name, err)
	}
	r, err := typesystem.ParseType(ret)
	if err != nil {
		return nil, fmt.Errorf("stored signature %s return: %w", name, err)
	}
	return &Signature{Name: name, Params: ps, Ret: r, Variadic: variadic, Requires: requires}, nil
}

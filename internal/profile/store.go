package profile

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/librescoot/maptool/internal/mvt"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  layers_to_keep TEXT NOT NULL,
  is_default INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS profiles_name_ci ON profiles (lower(name));
`

// Store is a SQLite-backed CRUD store over the profiles table. All
// operations are internally consistent but not safe for concurrent use
// across processes; the profile store is single-user.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the profiles database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("profile: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("profile: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns all profiles ordered by name ascending.
func (s *Store) List() ([]Profile, error) {
	rows, err := s.db.Query(`SELECT id, name, layers_to_keep, is_default FROM profiles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("profile: list: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("profile: list: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns the profile with the given id, or ErrNotFound.
func (s *Store) Get(id string) (Profile, error) {
	row := s.db.QueryRow(`SELECT id, name, layers_to_keep, is_default FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("profile: get %s: %w", id, err)
	}
	return p, nil
}

// GetDefault returns the unique default profile, or ErrNotFound if no
// profile is marked default (an empty store, or one whose default was
// deleted and not yet repaired by EnsureValidDefault).
func (s *Store) GetDefault() (Profile, error) {
	row := s.db.QueryRow(`SELECT id, name, layers_to_keep, is_default FROM profiles WHERE is_default = 1`)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("profile: get default: %w", err)
	}
	return p, nil
}

// Insert adds a new profile. Fails with ErrNameConflict if another profile
// has the same case-insensitive name. If p.ID is empty, a UUID is
// generated.
func (s *Store) Insert(p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	if exists, err := s.nameTaken(p.Name, ""); err != nil {
		return Profile{}, err
	} else if exists {
		return Profile{}, ErrNameConflict
	}

	_, err := s.db.Exec(
		`INSERT INTO profiles (id, name, layers_to_keep, is_default) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, encodeLayers(p.LayersToKeep), boolToInt(p.IsDefault),
	)
	if err != nil {
		return Profile{}, fmt.Errorf("profile: insert: %w", err)
	}
	return p, nil
}

// Update replaces the profile identified by p.ID. Same name-uniqueness
// rule as Insert, excluding the profile itself. If p.IsDefault is true,
// is_default is cleared on every other row first, the same exclusivity
// SetDefault enforces, so Update can never leave two rows default.
func (s *Store) Update(p Profile) error {
	if exists, err := s.nameTaken(p.Name, p.ID); err != nil {
		return err
	} else if exists {
		return ErrNameConflict
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("profile: update %s: %w", p.ID, err)
	}
	defer tx.Rollback()

	if p.IsDefault {
		if _, err := tx.Exec(`UPDATE profiles SET is_default = 0 WHERE id != ?`, p.ID); err != nil {
			return fmt.Errorf("profile: update %s: clear other defaults: %w", p.ID, err)
		}
	}

	res, err := tx.Exec(
		`UPDATE profiles SET name = ?, layers_to_keep = ?, is_default = ? WHERE id = ?`,
		p.Name, encodeLayers(p.LayersToKeep), boolToInt(p.IsDefault), p.ID,
	)
	if err != nil {
		return fmt.Errorf("profile: update %s: %w", p.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// Delete removes the profile with the given id. If the deleted profile was
// default, the default-exists invariant is restored lazily by
// EnsureValidDefault rather than here.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("profile: delete %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDefault atomically clears is_default on all rows and sets it on id.
func (s *Store) SetDefault(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("profile: set default: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE profiles SET is_default = 0`); err != nil {
		return fmt.Errorf("profile: set default: clear: %w", err)
	}
	res, err := tx.Exec(`UPDATE profiles SET is_default = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("profile: set default: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// EnsureValidDefault is called at startup. If no default exists, or the
// default's layer keep-set is empty, it rewrites (or creates) a default
// profile seeded from DefaultKeepSet.
func (s *Store) EnsureValidDefault() error {
	current, err := s.GetDefault()
	if err == ErrNotFound {
		return s.seedDefault()
	}
	if err != nil {
		return err
	}
	if len(current.LayersToKeep) == 0 {
		current.LayersToKeep = mvt.DefaultKeepSet()
		return s.Update(current)
	}
	return nil
}

// seedDefault installs the seed default profile under DefaultProfileID.
// A row with that id can already exist (e.g. left behind with
// is_default=0 after its default status was moved elsewhere and it was
// never deleted), so this upserts rather than blindly inserting: a
// plain INSERT would hit the primary key and abort EnsureValidDefault
// instead of repairing the invariant it was called to restore.
func (s *Store) seedDefault() error {
	_, err := s.db.Exec(
		`INSERT INTO profiles (id, name, layers_to_keep, is_default) VALUES (?, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, layers_to_keep = excluded.layers_to_keep, is_default = 1`,
		DefaultProfileID, DefaultProfileName, encodeLayers(mvt.DefaultKeepSet()),
	)
	if err != nil {
		return fmt.Errorf("profile: seed default: %w", err)
	}
	return nil
}

func (s *Store) nameTaken(name, excludeID string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM profiles WHERE lower(name) = lower(?) AND id != ?`,
		name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("profile: name check: %w", err)
	}
	return count > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (Profile, error) {
	var (
		p        Profile
		layersCS string
		isDef    int
	)
	if err := row.Scan(&p.ID, &p.Name, &layersCS, &isDef); err != nil {
		return Profile{}, err
	}
	p.LayersToKeep = decodeLayers(layersCS)
	p.IsDefault = isDef != 0
	return p, nil
}

func encodeLayers(layers map[string]struct{}) string {
	names := make([]string, 0, len(layers))
	for name := range layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func decodeLayers(csv string) map[string]struct{} {
	out := make(map[string]struct{})
	if csv == "" {
		return out
	}
	for _, name := range strings.Split(csv, ",") {
		out[name] = struct{}{}
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

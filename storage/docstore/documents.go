package docstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/db"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
)

// Query constants
const (
	atomColumns = `handle, kind, type, type_hash, name, targets, composite_type, composite_type_hash, toplevel, attributes`

	atomInsertQuery = `
		INSERT INTO atoms (` + atomColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	atomSelectQuery = `SELECT ` + atomColumns + ` FROM atoms WHERE handle = ?`

	atomExistsQuery = `SELECT EXISTS(SELECT 1 FROM atoms WHERE handle = ?)`

	atomPromoteQuery = `UPDATE atoms SET toplevel = 1 WHERE handle = ?`

	atomCountQuery = `SELECT kind, COUNT(*) FROM atoms GROUP BY kind`

	toplevelFilterQuery = `
		SELECT handle FROM atoms
		WHERE toplevel = 1 AND handle IN (SELECT value FROM json_each(?))`
)

// atomFields holds the marshaled JSON columns of an atom
type atomFields struct {
	Name              sql.NullString
	TargetsJSON       sql.NullString
	CompositeJSON     sql.NullString
	CompositeTypeHash sql.NullString
	AttributesJSON    string
}

func marshalAtomFields(a *atom.Atom) (*atomFields, error) {
	f := &atomFields{AttributesJSON: "{}"}
	if a.Attributes != nil {
		data, err := json.Marshal(a.Attributes)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal attributes")
		}
		f.AttributesJSON = string(data)
	}
	if a.IsNode() {
		f.Name = sql.NullString{String: a.Name, Valid: true}
		return f, nil
	}

	targets, err := json.Marshal(a.Targets)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal targets")
	}
	ct, err := json.Marshal(a.CompositeType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal composite type")
	}
	f.TargetsJSON = sql.NullString{String: string(targets), Valid: true}
	f.CompositeJSON = sql.NullString{String: string(ct), Valid: true}
	f.CompositeTypeHash = sql.NullString{String: string(a.CompositeTypeHash), Valid: true}
	return f, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAtom(row rowScanner) (*atom.Atom, error) {
	var (
		a        atom.Atom
		kind     string
		f        atomFields
		toplevel bool
	)
	if err := row.Scan(&a.Handle, &kind, &a.Type, &a.TypeHash, &f.Name, &f.TargetsJSON,
		&f.CompositeJSON, &f.CompositeTypeHash, &toplevel, &f.AttributesJSON); err != nil {
		return nil, err
	}
	a.Kind = atom.Kind(kind)
	a.Toplevel = toplevel
	a.Name = f.Name.String
	a.CompositeTypeHash = hasher.Handle(f.CompositeTypeHash.String)

	if f.TargetsJSON.Valid {
		if err := json.Unmarshal([]byte(f.TargetsJSON.String), &a.Targets); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal targets of %s", a.Handle)
		}
	}
	if f.CompositeJSON.Valid {
		if err := json.Unmarshal([]byte(f.CompositeJSON.String), &a.CompositeType); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal composite type of %s", a.Handle)
		}
	}
	if f.AttributesJSON != "" && f.AttributesJSON != "{}" {
		if err := json.Unmarshal([]byte(f.AttributesJSON), &a.Attributes); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal attributes of %s", a.Handle)
		}
	}
	return &a, nil
}

// loadAtom returns (nil, nil) when h is absent.
func (s *Store) loadAtom(ctx context.Context, h hasher.Handle) (*atom.Atom, error) {
	a, err := scanAtom(s.db.QueryRowContext(ctx, atomSelectQuery, h))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Wrapf(err, "failed to load atom %s", h)
	}
	return a, nil
}

func (s *Store) exists(ctx context.Context, h hasher.Handle) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, atomExistsQuery, h).Scan(&ok); err != nil {
		return false, db.Wrapf(err, "failed to check atom %s", h)
	}
	return ok, nil
}

func (s *Store) insertDocument(ctx context.Context, a *atom.Atom) error {
	f, err := marshalAtomFields(a)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, atomInsertQuery,
		a.Handle,
		string(a.Kind),
		a.Type,
		a.TypeHash,
		f.Name,
		f.TargetsJSON,
		f.CompositeJSON,
		f.CompositeTypeHash,
		a.Toplevel,
		f.AttributesJSON,
	)
	if err != nil {
		return db.Wrapf(err, "failed to insert atom %s", a.Handle)
	}
	return nil
}

// toplevelSet returns which of handles are toplevel.
func (s *Store) toplevelSet(ctx context.Context, handles []hasher.Handle) (map[hasher.Handle]bool, error) {
	out := make(map[hasher.Handle]bool, len(handles))
	if len(handles) == 0 {
		return out, nil
	}
	arg, err := json.Marshal(handles)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal handles")
	}
	rows, err := s.db.QueryContext(ctx, toplevelFilterQuery, string(arg))
	if err != nil {
		return nil, db.Wrap(err, "failed to filter toplevel links")
	}
	defer rows.Close()
	for rows.Next() {
		var h hasher.Handle
		if err := rows.Scan(&h); err != nil {
			return nil, db.Wrap(err, "failed to scan handle")
		}
		out[h] = true
	}
	return out, db.Wrap(rows.Err(), "failed to read handles")
}

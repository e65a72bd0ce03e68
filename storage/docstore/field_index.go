package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teranos/atomdb/db"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/storage"
)

const (
	fieldIndexInsertQuery = `
		INSERT INTO field_indexes (id, atom_type, field) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING`

	fieldIndexSelectQuery = `SELECT atom_type, field FROM field_indexes WHERE id = ?`

	fieldIndexListQuery = `SELECT id FROM field_indexes`
)

// fieldExpr splices field into SQL; CheckFieldName has restricted it to
// an identifier.
func fieldExpr(field string) string {
	return fmt.Sprintf(`json_extract(attributes, '$.%s')`, field)
}

// fieldCondition is the WHERE term for one condition. json_extract
// yields NULL for both a missing key and a JSON null, so a nil value is
// matched on json_type, which only reports 'null' for a present null.
func fieldCondition(c storage.Condition) (string, []any, error) {
	if c.Value == nil {
		return fmt.Sprintf(`json_type(attributes, '$.%s') = 'null'`, c.Field), nil, nil
	}
	v, err := sqlValue(c.Value)
	if err != nil {
		return "", nil, err
	}
	return fieldExpr(c.Field) + " = ?", []any{v}, nil
}

func fieldIndexName(id hasher.Handle) string {
	return "idx_field_" + string(id)
}

// CreateFieldIndex records the index and builds a SQLite expression index
// over the attribute so equality lookups avoid a table scan.
func (s *Store) CreateFieldIndex(ctx context.Context, atomType, field string) (hasher.Handle, error) {
	if atomType == "" {
		return "", errors.NewInvalidRequestError("field index needs an atom type")
	}
	if err := storage.CheckFieldName(field); err != nil {
		return "", err
	}
	id := storage.FieldIndexID(atomType, field)

	if _, err := s.db.ExecContext(ctx, fieldIndexInsertQuery, id, atomType, field); err != nil {
		return "", db.Wrapf(err, "failed to register field index %s", id)
	}
	ddl := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON atoms(type, %s)`, fieldIndexName(id), fieldExpr(field))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return "", db.Wrapf(err, "failed to build field index %s", id)
	}

	s.logger.Infow("created field index",
		logger.FieldIndexID, id,
		logger.FieldType, atomType,
		"field", field,
	)
	return id, nil
}

func (s *Store) GetAtomsByIndex(ctx context.Context, indexID hasher.Handle, conds []storage.Condition) ([]hasher.Handle, error) {
	if err := storage.CheckConditions(conds); err != nil {
		return nil, err
	}
	var atomType, field string
	err := s.db.QueryRowContext(ctx, fieldIndexSelectQuery, indexID).Scan(&atomType, &field)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("field index %s", indexID)
	}
	if err != nil {
		return nil, db.Wrapf(err, "failed to load field index %s", indexID)
	}

	var where []string
	args := []any{atomType}
	for _, c := range conds {
		if err := storage.CheckFieldName(c.Field); err != nil {
			return nil, err
		}
		term, termArgs, err := fieldCondition(c)
		if err != nil {
			return nil, err
		}
		where = append(where, term)
		args = append(args, termArgs...)
	}
	query := `SELECT handle FROM atoms WHERE type = ? AND ` + strings.Join(where, " AND ") + ` ORDER BY handle`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, db.Wrapf(err, "failed to query field index %s", indexID)
	}
	defer rows.Close()

	var out []hasher.Handle
	for rows.Next() {
		var h hasher.Handle
		if err := rows.Scan(&h); err != nil {
			return nil, db.Wrap(err, "failed to scan handle")
		}
		out = append(out, h)
	}
	return out, db.Wrap(rows.Err(), "failed to read handles")
}

func (s *Store) dropFieldIndexes(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, fieldIndexListQuery)
	if err != nil {
		return db.Wrap(err, "failed to list field indexes")
	}
	var ids []hasher.Handle
	for rows.Next() {
		var id hasher.Handle
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return db.Wrap(err, "failed to scan field index id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return db.Wrap(err, "failed to list field indexes")
	}

	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `DROP INDEX IF EXISTS `+fieldIndexName(id)); err != nil {
			return db.Wrapf(err, "failed to drop field index %s", id)
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM field_indexes`); err != nil {
		return db.Wrap(err, "failed to clear field indexes")
	}
	return nil
}

// sqlValue converts a condition value to what json_extract returns for
// the same JSON value: scalars pass through, booleans become 0/1, and
// composite values compare as their JSON text.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case string, int, int32, int64, uint, uint64, float32, float64:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return x.Float64()
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return nil, errors.NewInvalidRequestError("condition value %v is not JSON encodable", v)
		}
		return string(data), nil
	}
}

package engine

import (
	"context"
	"database/sql"
	"sync"

	"querydesk/internal/domain"
)

// sqlSession is one live connection backed by a single-connection *sql.DB pool.
type sqlSession struct {
	db        *sql.DB
	closeOnce sync.Once
}

func newSQLSession(ctx context.Context, db *sql.DB, target string) (*sqlSession, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.ErrConnection(err, "connect to %s", target)
	}
	return &sqlSession{db: db}, nil
}

// Execute runs statement. Row-producing statements are fully materialized;
// anything else runs in autocommit mode and reports the affected-row count,
// with the driver's "unknown" (-1) reported as 0.
func (s *sqlSession) Execute(ctx context.Context, statement string) (*domain.ResultSet, error) {
	if IsRowProducing(statement) {
		rows, err := s.db.QueryContext(ctx, statement)
		if err != nil {
			return nil, domain.ErrQuery(err, "execute query")
		}
		defer rows.Close() //nolint:errcheck

		rs, err := scanRows(rows)
		if err != nil {
			return nil, domain.ErrQuery(err, "fetch rows")
		}
		return rs, nil
	}

	res, err := s.db.ExecContext(ctx, statement)
	if err != nil {
		return nil, domain.ErrQuery(err, "execute statement")
	}
	affected, err := res.RowsAffected()
	if err != nil || affected < 0 {
		affected = 0
	}
	return &domain.ResultSet{
		Columns:  []string{},
		Rows:     [][]interface{}{},
		RowCount: affected,
	}, nil
}

// Close releases the connection once. Errors from an already broken
// connection are swallowed.
func (s *sqlSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.db.Close()
	})
	return nil
}

func scanRows(rows *sql.Rows) (*domain.ResultSet, error) {
	rs := &domain.ResultSet{Columns: []string{}, Rows: [][]interface{}{}, RowProducing: true}

	cols, err := rows.Columns()
	if err != nil || len(cols) == 0 {
		// No column metadata: nothing to fetch.
		return rs, nil
	}
	rs.Columns = cols

	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rs.RowCount = int64(len(rs.Rows))
	return rs, nil
}

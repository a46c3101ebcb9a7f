package repository

import (
	"context"
	"database/sql"
	"fmt"

	"querydesk/internal/db/crypto"
	"querydesk/internal/domain"
)

var _ domain.ConnectionRepository = (*ConnectionRepo)(nil)

// ConnectionRepo stores connection descriptors; passwords are sealed at rest.
type ConnectionRepo struct {
	db     *sql.DB
	sealer *crypto.PasswordSealer
}

// NewConnectionRepo creates a ConnectionRepo on the write pool.
func NewConnectionRepo(db *sql.DB, sealer *crypto.PasswordSealer) *ConnectionRepo {
	return &ConnectionRepo{db: db, sealer: sealer}
}

const connectionColumns = `id, name, kind, engine, db_path, host, port, database_name, user_name, password_enc, usage_count, created_at`

// Create inserts a descriptor and returns it with its assigned id.
func (r *ConnectionRepo) Create(ctx context.Context, d domain.Descriptor) (*domain.Descriptor, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	sealed, err := r.sealer.Seal(d.Server.Password)
	if err != nil {
		return nil, fmt.Errorf("seal password: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO connections (name, kind, engine, db_path, host, port, database_name, user_name, password_enc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.Name, string(d.Kind), string(d.Engine()),
		nullString(d.Embedded.Path), nullString(d.Server.Host), nullInt(d.Server.Port),
		nullString(d.Server.Database), nullString(d.Server.User), nullString(sealed))
	if err != nil {
		return nil, mapDBError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns one descriptor with its password opened.
func (r *ConnectionRepo) GetByID(ctx context.Context, id int64) (*domain.Descriptor, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	d, err := r.scan(row)
	if err != nil {
		if _, ok := err.(*domain.NotFoundError); ok {
			return nil, domain.ErrNotFound("connection %d not found", id)
		}
		return nil, err
	}
	return d, nil
}

// List returns all descriptors, most used first.
func (r *ConnectionRepo) List(ctx context.Context) ([]domain.Descriptor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections ORDER BY usage_count DESC, name`)
	if err != nil {
		return nil, mapDBError(err)
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Descriptor{}
	for rows.Next() {
		d, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Delete removes a connection together with its query history.
func (r *ConnectionRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return mapDBError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound("connection %d not found", id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM query_history WHERE connection_item_id = ?`, id); err != nil {
		return mapDBError(err)
	}
	return tx.Commit()
}

// IncrementUsage bumps the usage counter used to order connection pickers.
func (r *ConnectionRepo) IncrementUsage(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE connections SET usage_count = usage_count + 1 WHERE id = ?`, id)
	return mapDBError(err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ConnectionRepo) scan(row rowScanner) (*domain.Descriptor, error) {
	var (
		d                             domain.Descriptor
		kind, engine                  string
		path, host, dbName, user, enc sql.NullString
		port                          sql.NullInt64
	)
	err := row.Scan(&d.ID, &d.Name, &kind, &engine, &path, &host, &port, &dbName, &user, &enc, &d.UsageCount, &d.CreatedAt)
	if err != nil {
		return nil, mapDBError(err)
	}

	d.Kind = domain.BackendKind(kind)
	switch d.Kind {
	case domain.BackendEmbedded:
		d.Embedded = domain.EmbeddedTarget{Path: path.String, Engine: domain.Engine(engine)}
	case domain.BackendClientServer:
		password, err := r.sealer.Open(enc.String)
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", d.ID, err)
		}
		d.Server = domain.ServerTarget{
			Host:     host.String,
			Port:     int(port.Int64),
			Database: dbName.String,
			User:     user.String,
			Password: password,
			Engine:   domain.Engine(engine),
		}
	}
	return &d, nil
}

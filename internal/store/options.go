package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetOption reads an option of the active site. The bool is false when the
// option is not set.
func (b *Backend) GetOption(ctx context.Context, name string) (string, bool, error) {
	return b.readOption(ctx, b.Handle().Options(), name)
}

// UpdateOption sets an option of the active site, creating it when missing.
func (b *Backend) UpdateOption(ctx context.Context, name, value string) error {
	return b.writeOption(ctx, b.Handle().Options(), name, value)
}

// DeleteOption removes an option of the active site. Deleting a missing
// option is not an error.
func (b *Backend) DeleteOption(ctx context.Context, name string) error {
	db, d, err := b.conn()
	if err != nil {
		return err
	}
	table := b.Handle().Options()
	if _, err := db.ExecContext(ctx, d.Rebind("DELETE FROM "+table+" WHERE option_name = ?"), name); err != nil {
		return fmt.Errorf("deleting option %s: %w", name, err)
	}
	return nil
}

func (b *Backend) networkOption(ctx context.Context, name string) (string, bool, error) {
	return b.readOption(ctx, networkOptionsTable(b.Config().GetTablePrefix()), name)
}

func (b *Backend) setNetworkOption(ctx context.Context, name, value string) error {
	return b.writeOption(ctx, networkOptionsTable(b.Config().GetTablePrefix()), name, value)
}

func (b *Backend) readOption(ctx context.Context, table, name string) (string, bool, error) {
	db, d, err := b.conn()
	if err != nil {
		return "", false, err
	}
	var value string
	err = db.QueryRowContext(ctx, d.Rebind("SELECT option_value FROM "+table+" WHERE option_name = ?"), name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading option %s: %w", name, err)
	}
	return value, true, nil
}

func (b *Backend) writeOption(ctx context.Context, table, name, value string) error {
	db, d, err := b.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, d.Rebind(
		"INSERT INTO "+table+" (option_name, option_value) VALUES (?, ?) "+
			"ON CONFLICT (option_name) DO UPDATE SET option_value = excluded.option_value"),
		name, value)
	if err != nil {
		return fmt.Errorf("writing option %s: %w", name, err)
	}
	return nil
}

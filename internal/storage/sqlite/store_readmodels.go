package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/brigade/internal/storage"
)

const orderRecordColumns = "order_id, location_id, staff_id, status, serving_type, table_number, item_count, subtotal, tax, discount, total, currency, payment_method, customer_name, source_session_id, created_at, updated_at, last_applied_version"

const sessionRecordColumns = "session_id, customer_id, location_id, serving_type, cart_lines, cart_quantity, payment_method, interactions, converted, converted_order_id, started_at, updated_at, last_applied_version"

// UpsertOrder writes or replaces a denormalized order record.
func (s *Store) UpsertOrder(ctx context.Context, record storage.OrderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.OrderID) == "" {
		return fmt.Errorf("order id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		"INSERT OR REPLACE INTO order_records ("+orderRecordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.OrderID,
		record.LocationID,
		record.StaffID,
		record.Status,
		record.ServingType,
		record.TableNumber,
		record.ItemCount,
		record.Subtotal,
		record.Tax,
		record.Discount,
		record.Total,
		record.Currency,
		record.PaymentMethod,
		record.CustomerName,
		record.SourceSessionID,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
		int64(record.LastAppliedVersion),
	); err != nil {
		return fmt.Errorf("upsert order record: %w", err)
	}
	return nil
}

// GetOrder returns the order record or storage.ErrNotFound.
func (s *Store) GetOrder(ctx context.Context, orderID string) (storage.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.OrderRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.OrderRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(orderID) == "" {
		return storage.OrderRecord{}, fmt.Errorf("order id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+orderRecordColumns+" FROM order_records WHERE order_id = ?",
		orderID)
	record, err := scanOrderRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OrderRecord{}, storage.ErrNotFound
		}
		return storage.OrderRecord{}, fmt.Errorf("get order record: %w", err)
	}
	return record, nil
}

// ListOrdersByStatus returns order records in a lifecycle status, ordered by id.
func (s *Store) ListOrdersByStatus(ctx context.Context, status string) ([]storage.OrderRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+orderRecordColumns+" FROM order_records WHERE status = ? ORDER BY order_id",
		status)
	if err != nil {
		return nil, fmt.Errorf("list order records: %w", err)
	}
	defer rows.Close()

	var records []storage.OrderRecord
	for rows.Next() {
		record, err := scanOrderRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan order record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order records: %w", err)
	}
	return records, nil
}

// UpsertSession writes or replaces a denormalized session record.
func (s *Store) UpsertSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}

	converted := 0
	if record.Converted {
		converted = 1
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		"INSERT OR REPLACE INTO session_records ("+sessionRecordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.SessionID,
		record.CustomerID,
		record.LocationID,
		record.ServingType,
		record.CartLines,
		record.CartQuantity,
		record.PaymentMethod,
		record.Interactions,
		converted,
		record.ConvertedOrderID,
		toMillis(record.StartedAt),
		toMillis(record.UpdatedAt),
		int64(record.LastAppliedVersion),
	); err != nil {
		return fmt.Errorf("upsert session record: %w", err)
	}
	return nil
}

// GetSession returns the session record or storage.ErrNotFound.
func (s *Store) GetSession(ctx context.Context, sessionID string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(sessionID) == "" {
		return storage.SessionRecord{}, fmt.Errorf("session id is required")
	}

	var (
		record     storage.SessionRecord
		converted  int64
		startedAt  int64
		updatedAt  int64
		appliedVer int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT "+sessionRecordColumns+" FROM session_records WHERE session_id = ?",
		sessionID,
	).Scan(
		&record.SessionID,
		&record.CustomerID,
		&record.LocationID,
		&record.ServingType,
		&record.CartLines,
		&record.CartQuantity,
		&record.PaymentMethod,
		&record.Interactions,
		&converted,
		&record.ConvertedOrderID,
		&startedAt,
		&updatedAt,
		&appliedVer,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session record: %w", err)
	}
	record.Converted = converted != 0
	record.StartedAt = fromMillis(startedAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.LastAppliedVersion = uint64(appliedVer)
	return record, nil
}

func scanOrderRecord(scan func(dest ...any) error) (storage.OrderRecord, error) {
	var (
		record    storage.OrderRecord
		createdAt int64
		updatedAt int64
		version   int64
	)
	if err := scan(
		&record.OrderID,
		&record.LocationID,
		&record.StaffID,
		&record.Status,
		&record.ServingType,
		&record.TableNumber,
		&record.ItemCount,
		&record.Subtotal,
		&record.Tax,
		&record.Discount,
		&record.Total,
		&record.Currency,
		&record.PaymentMethod,
		&record.CustomerName,
		&record.SourceSessionID,
		&createdAt,
		&updatedAt,
		&version,
	); err != nil {
		return storage.OrderRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	record.LastAppliedVersion = uint64(version)
	return record, nil
}

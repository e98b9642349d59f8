package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/turnos-booking/internal/model"
)

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// ReservationRepo stores reservations in MySQL.  Uniqueness of active
// reservations is enforced by the database: the reservations table carries a
// stored generated column active_slot which equals slot_at while the row is
// pending or confirmed and NULL otherwise, and a UNIQUE index on that column.
// Every mutation is a single conditional statement so concurrent writers
// never depend on a prior read.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, slot_at, client_name, service_type, client_email, status, deposit_cents, payment_ref, hold_token, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (model.Reservation, error) {
	var (
		res     model.Reservation
		status  string
		email   sql.NullString
		deposit sql.NullInt64
		payRef  sql.NullString
		token   sql.NullString
	)
	err := row.Scan(&res.ID, &res.SlotAt, &res.ClientName, &res.ServiceType,
		&email, &status, &deposit, &payRef, &token, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	res.Status = model.Status(status)
	if email.Valid {
		e := email.String
		res.ClientEmail = &e
	}
	if deposit.Valid {
		d := deposit.Int64
		res.DepositCents = &d
	}
	if payRef.Valid {
		p := payRef.String
		res.PaymentRef = &p
	}
	if token.Valid {
		t := token.String
		res.HoldToken = &t
	}
	return res, nil
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// FindActiveBySlot returns the pending or confirmed reservation occupying
// slot.  ErrNotFound is returned when the slot is free.
func (r *ReservationRepo) FindActiveBySlot(ctx context.Context, slot time.Time) (*model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE active_slot = ? LIMIT 1`
	res, err := scanReservation(r.db.QueryRowContext(ctx, q, slot.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// InsertIfAbsent inserts res and reports whether it was stored.  When res is
// active and another active reservation already holds the slot, the unique
// index rejects the row and InsertIfAbsent returns false with a nil error.
// On success the generated ID and timestamps are populated on res.
func (r *ReservationRepo) InsertIfAbsent(ctx context.Context, res *model.Reservation) (bool, error) {
	const q = `INSERT INTO reservations
               (slot_at, client_name, service_type, client_email, status, deposit_cents, payment_ref, hold_token, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(), UTC_TIMESTAMP())`
	result, err := r.db.ExecContext(ctx, q,
		res.SlotAt.UTC(), res.ClientName, res.ServiceType, res.ClientEmail,
		string(res.Status), res.DepositCents, res.PaymentRef, res.HoldToken,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return false, err
	}
	// Query back the full row to populate timestamps and defaults
	sel := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	stored, err := scanReservation(r.db.QueryRowContext(ctx, sel, id))
	if err != nil {
		return false, err
	}
	*res = stored
	return true, nil
}

// ResolveHold moves the pending hold at slot issued with token to the given
// status in a single conditional statement.  It reports whether a row
// changed; false means the slot holds no pending reservation with that token.
func (r *ReservationRepo) ResolveHold(ctx context.Context, slot time.Time, token string, to model.Status) (bool, error) {
	const q = `UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP()
               WHERE active_slot = ? AND status = ? AND hold_token = ?`
	result, err := r.db.ExecContext(ctx, q, string(to), slot.UTC(), string(model.StatusPending), token)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetPaymentRef records the gateway reference on the pending hold at slot
// issued with token.
func (r *ReservationRepo) SetPaymentRef(ctx context.Context, slot time.Time, token, ref string) error {
	const q = `UPDATE reservations SET payment_ref = ?, updated_at = UTC_TIMESTAMP()
               WHERE active_slot = ? AND status = ? AND hold_token = ?`
	result, err := r.db.ExecContext(ctx, q, ref, slot.UTC(), string(model.StatusPending), token)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteBefore removes every reservation, whatever its status, whose slot is
// strictly before cutoff, and returns the number of rows deleted.
func (r *ReservationRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE slot_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CancelPendingBefore cancels pending reservations created before the given
// instant, releasing slots whose payment was abandoned.
func (r *ReservationRepo) CancelPendingBefore(ctx context.Context, createdBefore time.Time) (int64, error) {
	const q = `UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP() WHERE status = ? AND created_at < ?`
	result, err := r.db.ExecContext(ctx, q, string(model.StatusCancelled), string(model.StatusPending), createdBefore.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListActiveByDate returns pending and confirmed reservations whose slot lies
// in [from, to), ordered by slot.
func (r *ReservationRepo) ListActiveByDate(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations
          WHERE slot_at >= ? AND slot_at < ? AND status IN (?, ?)
          ORDER BY slot_at`
	return r.query(ctx, q, from.UTC(), to.UTC(), string(model.StatusPending), string(model.StatusConfirmed))
}

// List returns every stored reservation ordered by slot.
func (r *ReservationRepo) List(ctx context.Context) ([]model.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations ORDER BY slot_at, id`
	return r.query(ctx, q)
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

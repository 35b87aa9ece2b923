package store

import "database/sql"

// GetOrCreateAccount returns the ProfitAccount for displayName, inserting
// one at accountID (caller-computed CRC32) if it doesn't exist yet.
func GetOrCreateAccount(q Queryer, displayName string, accountID int64, now int64) (*ProfitAccount, error) {
	row := q.QueryRow(`SELECT account_id, display_name, created_ts FROM pt_accounts WHERE display_name = ?`, displayName)
	var acc ProfitAccount
	err := row.Scan(&acc.AccountID, &acc.DisplayName, &acc.CreatedTS)
	if err == nil {
		return &acc, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	if _, err := q.Exec(`INSERT OR IGNORE INTO pt_accounts (account_id, display_name, created_ts) VALUES (?, ?, ?)`,
		accountID, displayName, now); err != nil {
		return nil, err
	}
	return &ProfitAccount{AccountID: accountID, DisplayName: displayName, CreatedTS: now}, nil
}

// ListAccounts returns every known profit-tracking account.
func ListAccounts(q Queryer) ([]*ProfitAccount, error) {
	rows, err := q.Query(`SELECT account_id, display_name, created_ts FROM pt_accounts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ProfitAccount
	for rows.Next() {
		var a ProfitAccount
		if err := rows.Scan(&a.AccountID, &a.DisplayName, &a.CreatedTS); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// OpenFlip returns the open flip for (displayName, itemID) — deleted=0 and
// status != FINISHED — or nil if none exists.
func OpenFlip(q Queryer, displayName string, itemID int64) (*Flip, error) {
	row := q.QueryRow(`
		SELECT flip_uuid, display_name, account_id, item_id, opened_time, opened_qty, spent,
		       closed_time, closed_qty, received_post_tax, profit, tax_paid, status, updated_time, deleted
		  FROM pt_flips
		 WHERE display_name = ? AND item_id = ? AND deleted = 0 AND status != ?
		 ORDER BY updated_time DESC
		 LIMIT 1`, displayName, itemID, FlipFinished)
	f, err := scanFlip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// GetFlip loads a flip by uuid.
func GetFlip(q Queryer, flipUUID string) (*Flip, error) {
	row := q.QueryRow(`
		SELECT flip_uuid, display_name, account_id, item_id, opened_time, opened_qty, spent,
		       closed_time, closed_qty, received_post_tax, profit, tax_paid, status, updated_time, deleted
		  FROM pt_flips WHERE flip_uuid = ?`, flipUUID)
	f, err := scanFlip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

func scanFlip(row rowScanner) (*Flip, error) {
	var f Flip
	var deleted int
	if err := row.Scan(
		&f.FlipUUID, &f.DisplayName, &f.AccountID, &f.ItemID, &f.OpenedTime, &f.OpenedQty, &f.Spent,
		&f.ClosedTime, &f.ClosedQty, &f.ReceivedPostTax, &f.Profit, &f.TaxPaid, &f.Status, &f.UpdatedTime, &deleted,
	); err != nil {
		return nil, err
	}
	f.Deleted = deleted != 0
	return &f, nil
}

// UpsertFlip inserts or fully replaces a flip row.
func UpsertFlip(q Queryer, f *Flip) error {
	_, err := q.Exec(`
		INSERT INTO pt_flips (
			flip_uuid, display_name, account_id, item_id, opened_time, opened_qty, spent,
			closed_time, closed_qty, received_post_tax, profit, tax_paid, status, updated_time, deleted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flip_uuid) DO UPDATE SET
			opened_qty = excluded.opened_qty,
			spent = excluded.spent,
			closed_time = excluded.closed_time,
			closed_qty = excluded.closed_qty,
			received_post_tax = excluded.received_post_tax,
			profit = excluded.profit,
			tax_paid = excluded.tax_paid,
			status = excluded.status,
			updated_time = excluded.updated_time,
			deleted = excluded.deleted`,
		f.FlipUUID, f.DisplayName, f.AccountID, f.ItemID, f.OpenedTime, f.OpenedQty, f.Spent,
		f.ClosedTime, f.ClosedQty, f.ReceivedPostTax, f.Profit, f.TaxPaid, f.Status, f.UpdatedTime, boolToInt(f.Deleted),
	)
	return err
}

// FlipsUpdatedSince returns every flip for accountID, deleted ones included,
// whose updated_time exceeds lastTime.
func FlipsUpdatedSince(q Queryer, accountID int64, lastTime int64) ([]*Flip, error) {
	rows, err := q.Query(`
		SELECT flip_uuid, display_name, account_id, item_id, opened_time, opened_qty, spent,
		       closed_time, closed_qty, received_post_tax, profit, tax_paid, status, updated_time, deleted
		  FROM pt_flips
		 WHERE account_id = ? AND updated_time > ?
		 ORDER BY updated_time ASC`, accountID, lastTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Flip
	for rows.Next() {
		f, err := scanFlip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// TransactionExists reports whether txID has already been ingested.
func TransactionExists(q Queryer, txID string) (bool, error) {
	var n int
	if err := q.QueryRow(`SELECT COUNT(*) FROM pt_transactions WHERE tx_id = ?`, txID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertTransaction appends a profit-tracking transaction row.
func InsertTransaction(q Queryer, t *ProfitTransaction) error {
	_, err := q.Exec(`
		INSERT OR IGNORE INTO pt_transactions (
			tx_id, display_name, account_id, flip_uuid, time, item_id, quantity, price,
			box_id, amount_spent, was_copilot_suggestion, copilot_price_used, login, raw_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TxID, t.DisplayName, t.AccountID, t.FlipUUID, t.Time, t.ItemID, t.Quantity, t.Price,
		t.BoxID, t.AmountSpent, boolToInt(t.WasCopilotSuggestion), t.CopilotPriceUsed, t.Login, t.RawJSON,
	)
	return err
}

// GetTransaction loads a transaction by id.
func GetTransaction(q Queryer, txID string) (*ProfitTransaction, error) {
	row := q.QueryRow(`
		SELECT tx_id, display_name, account_id, flip_uuid, time, item_id, quantity, price,
		       box_id, amount_spent, was_copilot_suggestion, copilot_price_used, login, raw_json
		  FROM pt_transactions WHERE tx_id = ?`, txID)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// RecentTransactionsForAccount returns up to limit transactions for
// displayName, newest first (optionally before endTime when endTime > 0).
func RecentTransactionsForAccount(q Queryer, displayName string, limit int, endTime int64) ([]*ProfitTransaction, error) {
	var rows *sql.Rows
	var err error
	if endTime > 0 {
		rows, err = q.Query(`
			SELECT tx_id, display_name, account_id, flip_uuid, time, item_id, quantity, price,
			       box_id, amount_spent, was_copilot_suggestion, copilot_price_used, login, raw_json
			  FROM pt_transactions
			 WHERE display_name = ? AND time <= ?
			 ORDER BY time DESC LIMIT ?`, displayName, endTime, limit)
	} else {
		rows, err = q.Query(`
			SELECT tx_id, display_name, account_id, flip_uuid, time, item_id, quantity, price,
			       box_id, amount_spent, was_copilot_suggestion, copilot_price_used, login, raw_json
			  FROM pt_transactions
			 WHERE display_name = ?
			 ORDER BY time DESC LIMIT ?`, displayName, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ProfitTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row rowScanner) (*ProfitTransaction, error) {
	var t ProfitTransaction
	var wasSuggestion int
	if err := row.Scan(
		&t.TxID, &t.DisplayName, &t.AccountID, &t.FlipUUID, &t.Time, &t.ItemID, &t.Quantity, &t.Price,
		&t.BoxID, &t.AmountSpent, &wasSuggestion, &t.CopilotPriceUsed, &t.Login, &t.RawJSON,
	); err != nil {
		return nil, err
	}
	t.WasCopilotSuggestion = wasSuggestion != 0
	return &t, nil
}

// TransactionsForFlip returns every transaction posted against flipUUID,
// oldest first, for the visualize-flip endpoint.
func TransactionsForFlip(q Queryer, flipUUID string) ([]*ProfitTransaction, error) {
	rows, err := q.Query(`
		SELECT tx_id, display_name, account_id, flip_uuid, time, item_id, quantity, price,
		       box_id, amount_spent, was_copilot_suggestion, copilot_price_used, login, raw_json
		  FROM pt_transactions
		 WHERE flip_uuid = ?
		 ORDER BY time ASC`, flipUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*ProfitTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RepointTransaction re-targets a transaction's flip_uuid, used by
// orphan_transaction.
func RepointTransaction(q Queryer, txID, flipUUID string) error {
	_, err := q.Exec(`UPDATE pt_transactions SET flip_uuid = ? WHERE tx_id = ?`, flipUUID, txID)
	return err
}

// DeleteTransaction removes a transaction row. Flip history is not rebuilt.
func DeleteTransaction(q Queryer, txID string) error {
	_, err := q.Exec(`DELETE FROM pt_transactions WHERE tx_id = ?`, txID)
	return err
}

package store

import "database/sql"

// InsertRecommendation records an issued suggestion. Idempotent: a
// duplicate rec_id is silently ignored.
func InsertRecommendation(q Queryer, r *Recommendation) error {
	_, err := q.Exec(`
		INSERT OR IGNORE INTO recommendations (
			rec_id, issued_ts, rec_type, box_id, item_id, price, qty,
			expected_profit, expected_duration, note, abort_reason, outcome_status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RecID, r.IssuedTS, r.RecType, r.BoxID, r.ItemID, r.Price, r.Qty,
		r.ExpectedProfit, r.ExpectedDuration, r.Note, r.AbortReason, OutcomeIssued,
	)
	return err
}

// GetRecommendation loads a recommendation by id.
func GetRecommendation(q Queryer, recID string) (*Recommendation, error) {
	row := q.QueryRow(`
		SELECT rec_id, issued_ts, rec_type, box_id, item_id, price, qty, expected_profit,
		       expected_duration, note, abort_reason, linked_offer_id, outcome_status,
		       buy_first_fill_ts, buy_done_ts, buy_phase_seconds, sell_phase_seconds,
		       realized_profit, realized_cost, realized_roi, realized_vs_expected, closed_ts
		  FROM recommendations WHERE rec_id = ?`, recID)
	rec, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func scanRecommendation(row rowScanner) (*Recommendation, error) {
	var r Recommendation
	if err := row.Scan(
		&r.RecID, &r.IssuedTS, &r.RecType, &r.BoxID, &r.ItemID, &r.Price, &r.Qty, &r.ExpectedProfit,
		&r.ExpectedDuration, &r.Note, &r.AbortReason, &r.LinkedOfferID, &r.OutcomeStatus,
		&r.BuyFirstFillTS, &r.BuyDoneTS, &r.BuyPhaseSeconds, &r.SellPhaseSeconds,
		&r.RealizedProfit, &r.RealizedCost, &r.RealizedROI, &r.RealizedVsExpected, &r.ClosedTS,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// FindLinkableRecommendation finds an unlinked recent (<=maxAgeSeconds) rec
// matching (rec_type, box_id, item_id, outcome_status='issued'), used by the
// offer reconciler to bind an instance to its triggering suggestion.
func FindLinkableRecommendation(q Queryer, recType string, boxID int, itemID int64, now, maxAgeSeconds int64) (*Recommendation, error) {
	row := q.QueryRow(`
		SELECT rec_id, issued_ts, rec_type, box_id, item_id, price, qty, expected_profit,
		       expected_duration, note, abort_reason, linked_offer_id, outcome_status,
		       buy_first_fill_ts, buy_done_ts, buy_phase_seconds, sell_phase_seconds,
		       realized_profit, realized_cost, realized_roi, realized_vs_expected, closed_ts
		  FROM recommendations
		 WHERE rec_type = ? AND box_id = ? AND item_id = ? AND outcome_status = ?
		   AND linked_offer_id IS NULL AND issued_ts >= ?
		 ORDER BY issued_ts DESC
		 LIMIT 1`, recType, boxID, itemID, OutcomeIssued, now-maxAgeSeconds)
	rec, err := scanRecommendation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// LinkRecommendation sets linked_offer_id exactly once and advances to
// outcome "linked".
func LinkRecommendation(q Queryer, recID string, offerID int64) error {
	_, err := q.Exec(`
		UPDATE recommendations
		   SET linked_offer_id = ?, outcome_status = ?
		 WHERE rec_id = ? AND linked_offer_id IS NULL`, offerID, OutcomeLinked, recID)
	return err
}

// SetOutcome advances a recommendation's outcome_status unless it is already
// terminal (completed or failed_*).
func SetOutcome(q Queryer, recID, status string) error {
	_, err := q.Exec(`
		UPDATE recommendations
		   SET outcome_status = ?
		 WHERE rec_id = ?
		   AND outcome_status NOT IN (?, ?, ?)`,
		status, recID, OutcomeCompleted, OutcomeFailedNoFill, OutcomeFailedCancelled)
	return err
}

// TimeoutUnfilledBuys marks any buy rec in {issued, linked} with no
// buy_first_fill_ts whose age is at least timeoutSeconds as failed_no_fill.
func TimeoutUnfilledBuys(q Queryer, now int64, timeoutSeconds int64) (int64, error) {
	res, err := q.Exec(`
		UPDATE recommendations
		   SET outcome_status = ?
		 WHERE rec_type = 'buy'
		   AND outcome_status IN (?, ?)
		   AND buy_first_fill_ts IS NULL
		   AND (? - issued_ts) >= ?`,
		OutcomeFailedNoFill, OutcomeIssued, OutcomeLinked, now, timeoutSeconds)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// NonTerminalBuyRecs returns every buy recommendation not yet in a terminal
// outcome, for the per-pass rollup in update_outcomes.
func NonTerminalBuyRecs(q Queryer) ([]*Recommendation, error) {
	rows, err := q.Query(`
		SELECT rec_id, issued_ts, rec_type, box_id, item_id, price, qty, expected_profit,
		       expected_duration, note, abort_reason, linked_offer_id, outcome_status,
		       buy_first_fill_ts, buy_done_ts, buy_phase_seconds, sell_phase_seconds,
		       realized_profit, realized_cost, realized_roi, realized_vs_expected, closed_ts
		  FROM recommendations
		 WHERE rec_type = 'buy' AND outcome_status NOT IN (?, ?, ?)`,
		OutcomeCompleted, OutcomeFailedNoFill, OutcomeFailedCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRecRollup persists the aggregated realized-trade rollup for a buy rec.
func UpdateRecRollup(q Queryer, r *Recommendation) error {
	_, err := q.Exec(`
		UPDATE recommendations
		   SET realized_profit = ?, realized_cost = ?, realized_roi = ?, realized_vs_expected = ?,
		       sell_phase_seconds = ?, outcome_status = ?, closed_ts = ?
		 WHERE rec_id = ?`,
		r.RealizedProfit, r.RealizedCost, r.RealizedROI, r.RealizedVsExpected,
		r.SellPhaseSeconds, r.OutcomeStatus, r.ClosedTS, r.RecID)
	return err
}

// UpdateRecBuyPhase fills in the buy-side phase timestamps once the linked
// instance shows a first fill / completion.
func UpdateRecBuyPhase(q Queryer, r *Recommendation) error {
	_, err := q.Exec(`
		UPDATE recommendations
		   SET buy_first_fill_ts = ?, buy_done_ts = ?, buy_phase_seconds = ?, outcome_status = ?
		 WHERE rec_id = ?`,
		r.BuyFirstFillTS, r.BuyDoneTS, r.BuyPhaseSeconds, r.OutcomeStatus, r.RecID)
	return err
}

// MostRecentAbortIssuedTS returns the issued_ts of the most recent abort rec
// for boxID, or 0 if none, for the abort cooldown throttle.
func MostRecentAbortIssuedTS(q Queryer, boxID int) (int64, error) {
	var ts int64
	err := q.QueryRow(`
		SELECT COALESCE(MAX(issued_ts), 0) FROM recommendations WHERE rec_type = 'abort' AND box_id = ?`, boxID).Scan(&ts)
	return ts, err
}

// RecentRecommendations returns the most recently issued recommendations,
// newest first, for diagnostic surfaces.
func RecentRecommendations(q Queryer, limit int) ([]*Recommendation, error) {
	rows, err := q.Query(`
		SELECT rec_id, issued_ts, rec_type, box_id, item_id, price, qty, expected_profit,
		       expected_duration, note, abort_reason, linked_offer_id, outcome_status,
		       buy_first_fill_ts, buy_done_ts, buy_phase_seconds, sell_phase_seconds,
		       realized_profit, realized_cost, realized_roi, realized_vs_expected, closed_ts
		  FROM recommendations
		 ORDER BY issued_ts DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

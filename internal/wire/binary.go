package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"ge-copilot/internal/store"
)

// FlipV2Size is the fixed record length of a packed Flip.
const FlipV2Size = 84

// AckedTransactionSize is the fixed record length of a packed transaction.
const AckedTransactionSize = 56

// PackFlipV2 encodes f into the 84-byte BIG_ENDIAN FlipV2 record.
func PackFlipV2(f *store.Flip) ([]byte, error) {
	id, err := uuid.Parse(f.FlipUUID)
	if err != nil {
		return nil, err
	}
	msb, lsb := SplitUUID(id)

	buf := new(bytes.Buffer)
	fields := []any{
		msb, lsb,
		int32(f.AccountID), int32(f.ItemID),
		int32(f.OpenedTime), int32(f.OpenedQty),
		f.Spent,
		int32(f.ClosedTime), int32(f.ClosedQty),
		f.ReceivedPostTax,
		f.Profit,
		f.TaxPaid,
		int32(f.Status), int32(f.UpdatedTime),
		boolToI32(f.Deleted),
	}
	for _, v := range fields {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnpackFlipV2 decodes an 84-byte FlipV2 record.
func UnpackFlipV2(b []byte) (*store.Flip, error) {
	if len(b) != FlipV2Size {
		return nil, errSize("FlipV2", FlipV2Size, len(b))
	}
	r := bytes.NewReader(b)
	var msb, lsb int64
	var accountID, itemID, openedTime, openedQty, closedTime, closedQty, status, updatedTime, deleted int32
	var spent, received, profit, taxPaid int64

	for _, v := range []any{
		&msb, &lsb, &accountID, &itemID, &openedTime, &openedQty, &spent,
		&closedTime, &closedQty, &received, &profit, &taxPaid, &status, &updatedTime, &deleted,
	} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	return &store.Flip{
		FlipUUID:        JoinUUID(msb, lsb).String(),
		AccountID:       int64(accountID),
		ItemID:          int64(itemID),
		OpenedTime:      int64(openedTime),
		OpenedQty:       int64(openedQty),
		Spent:           spent,
		ClosedTime:      int64(closedTime),
		ClosedQty:       int64(closedQty),
		ReceivedPostTax: received,
		Profit:          profit,
		TaxPaid:         taxPaid,
		Status:          int(status),
		UpdatedTime:     int64(updatedTime),
		Deleted:         deleted != 0,
	}, nil
}

// AckedTransaction is the client-facing projection of a ProfitTransaction.
type AckedTransaction struct {
	TxUUID      uuid.UUID
	FlipUUID    uuid.UUID
	AccountID   int64
	Time        int64
	ItemID      int64
	Quantity    int64
	Price       int64
	AmountSpent int64
}

// PackAckedTransaction encodes t into the 56-byte BIG_ENDIAN record.
func PackAckedTransaction(t *AckedTransaction) ([]byte, error) {
	txMSB, txLSB := SplitUUID(t.TxUUID)
	flipMSB, flipLSB := SplitUUID(t.FlipUUID)

	buf := new(bytes.Buffer)
	fields := []any{
		txMSB, txLSB, flipMSB, flipLSB,
		int32(t.AccountID), int32(t.Time), int32(t.ItemID),
		int32(t.Quantity), int32(t.Price), int32(t.AmountSpent),
	}
	for _, v := range fields {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnpackAckedTransaction decodes a 56-byte AckedTransaction record.
func UnpackAckedTransaction(b []byte) (*AckedTransaction, error) {
	if len(b) != AckedTransactionSize {
		return nil, errSize("AckedTransaction", AckedTransactionSize, len(b))
	}
	r := bytes.NewReader(b)
	var txMSB, txLSB, flipMSB, flipLSB int64
	var accountID, t, itemID, qty, price, amountSpent int32

	for _, v := range []any{
		&txMSB, &txLSB, &flipMSB, &flipLSB, &accountID, &t, &itemID, &qty, &price, &amountSpent,
	} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	return &AckedTransaction{
		TxUUID:      JoinUUID(txMSB, txLSB),
		FlipUUID:    JoinUUID(flipMSB, flipLSB),
		AccountID:   int64(accountID),
		Time:        int64(t),
		ItemID:      int64(itemID),
		Quantity:    int64(qty),
		Price:       int64(price),
		AmountSpent: int64(amountSpent),
	}, nil
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func errSize(record string, expected, got int) error {
	return fmt.Errorf("%s: expected %d bytes, got %d", record, expected, got)
}

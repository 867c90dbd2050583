package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	"github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/receipt"
)

const receiptDateLayout = "2006-01-02 15:04 UTC"

// Receipt renders a batch as PDF for its owner or an admin. Other callers see not found.
func (s *Service) Receipt(ctx context.Context, subject identitydomain.Subject, id string) (*paymentdomain.ReceiptFile, error) {
	batchID, err := paymentdomain.ParseID(strings.TrimSpace(id))
	if err != nil || batchID == 0 {
		return nil, paymentdomain.ErrInvalidID
	}

	batch, err := s.repo.FindByID(ctx, s.db, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil || (batch.UserID != subject.UserID && !subject.IsAdmin()) {
		return nil, paymentdomain.ErrNotFound
	}

	data := receipt.Data{
		PaymentID: batch.ID.String(),
		Status:    string(batch.Status),
		Currency:  batch.Currency,
		IssuedAt:  batch.CreatedAt.UTC().Format(receiptDateLayout),
		Method:    batch.Method,
		Reference: batch.Reference,
		Total:     batch.Amount,
	}
	if batch.PaidAt != nil {
		data.PaidAt = batch.PaidAt.UTC().Format(receiptDateLayout)
	}

	user, err := s.userRepo.FindByID(ctx, s.db, batch.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		data.Contributor = user.DisplayName
		data.Email = user.Email
	}

	unitPrice := int64(0)
	if batch.Units > 0 {
		unitPrice = batch.Amount / int64(batch.Units)
	}
	data.Lines = []receipt.Line{{
		Description: fmt.Sprintf("Verified recordings, %d per unit (scripted %d, freeform %d)",
			batch.Threshold, batch.ScriptedCount, batch.FreeformCount),
		Qty:       batch.Units,
		UnitPrice: unitPrice,
		Amount:    batch.Amount,
	}}

	content, err := receipt.Render(data)
	if err != nil {
		return nil, err
	}

	return &paymentdomain.ReceiptFile{
		FileName: fmt.Sprintf("receipt-%s-%s.pdf", batch.ID.String(), batch.CreatedAt.UTC().Format(time.DateOnly)),
		Content:  content,
	}, nil
}

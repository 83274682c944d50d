package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/pkg/errors"
	"github.com/tealeg/xlsx"
	"gorm.io/gorm"
)

// ReconciliationDesk records verified payments that produced no order and lets
// operators settle them.
type ReconciliationDesk struct {
	db *gorm.DB
}

func NewReconciliationDesk(db *gorm.DB) *ReconciliationDesk {
	return &ReconciliationDesk{db: db}
}

// Flag opens a case for a verified payment whose order could not be recorded.
// A payment gets one case; flagging it again returns the existing case and
// opened is false.
func (d *ReconciliationDesk) Flag(ctx context.Context, s Session, req CommitRequest, reason string) (rc *models.ReconciliationCase, opened bool, err error) {
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ReconciliationCase
		err := tx.Where("razorpay_order_id = ? AND payment_id = ?", req.GatewayOrderID, req.PaymentID).
			First(&existing).Error
		if err == nil {
			rc = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrapf(err, "look up reconciliation case for payment %s", req.PaymentID)
		}

		rc = &models.ReconciliationCase{
			AttemptID:       req.AttemptID,
			UserID:          s.BuyerID,
			AddressID:       req.AddressID,
			CouponCode:      req.CouponCode,
			RazorpayOrderID: req.GatewayOrderID,
			PaymentID:       req.PaymentID,
			Signature:       req.Signature,
			Amount:          req.Amount,
			Reason:          reason,
			Status:          models.ReconciliationOpen,
		}
		if err := tx.Create(rc).Error; err != nil {
			return errors.Wrapf(err, "flag payment %s for reconciliation", req.PaymentID)
		}
		opened = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if opened {
		utils.WithFields(s.fields()).Errorf("Reconciliation case %d opened for payment %s: %s", rc.ID, req.PaymentID, reason)
	} else {
		utils.LogWarn("Payment %s already has reconciliation case %d", req.PaymentID, rc.ID)
	}
	return rc, opened, nil
}

// List returns cases, newest first. An empty status lists every case.
func (d *ReconciliationDesk) List(ctx context.Context, status string, offset, limit int) ([]models.ReconciliationCase, int64, error) {
	query := d.db.WithContext(ctx).Model(&models.ReconciliationCase{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count reconciliation cases")
	}

	var cases []models.ReconciliationCase
	q := query.Order("id DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&cases).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list reconciliation cases")
	}
	return cases, total, nil
}

// Resolve closes an open case with the operator's note
func (d *ReconciliationDesk) Resolve(ctx context.Context, id uint, note string) (*models.ReconciliationCase, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, utils.ValidationError("Resolution note is required", nil)
	}

	var rc models.ReconciliationCase
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rc, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFoundError("Reconciliation case not found", nil)
			}
			return errors.Wrapf(err, "load reconciliation case %d", id)
		}
		if rc.Status == models.ReconciliationResolved {
			return utils.ConflictError("Reconciliation case is already resolved", nil)
		}

		now := time.Now()
		rc.Status = models.ReconciliationResolved
		rc.ResolutionNote = note
		rc.ResolvedAt = &now
		if err := tx.Save(&rc).Error; err != nil {
			return errors.Wrap(err, "resolve reconciliation case")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	utils.LogInfo("Reconciliation case %d resolved", id)
	return &rc, nil
}

// ExportXLSX writes the cases with the given status as a spreadsheet
func (d *ReconciliationDesk) ExportXLSX(ctx context.Context, w io.Writer, status string) error {
	cases, _, err := d.List(ctx, status, 0, 0)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Reconciliation")
	if err != nil {
		return errors.Wrap(err, "create sheet")
	}

	headers := []string{"Case ID", "Opened", "Buyer ID", "Attempt", "Gateway Order", "Payment", "Amount", "Reason", "Status", "Resolution"}
	headerRow := sheet.AddRow()
	for _, h := range headers {
		cell := headerRow.AddCell()
		cell.SetString(h)
		style := xlsx.NewStyle()
		font := xlsx.DefaultFont()
		font.Bold = true
		style.Font = *font
		cell.SetStyle(style)
	}

	for _, rc := range cases {
		row := sheet.AddRow()
		row.AddCell().SetInt(int(rc.ID))
		row.AddCell().SetString(rc.CreatedAt.Format("2006-01-02 15:04"))
		row.AddCell().SetInt(int(rc.UserID))
		row.AddCell().SetString(rc.AttemptID)
		row.AddCell().SetString(rc.RazorpayOrderID)
		row.AddCell().SetString(rc.PaymentID)
		amount, _ := rc.Amount.Float64()
		row.AddCell().SetFloat(amount)
		row.AddCell().SetString(rc.Reason)
		row.AddCell().SetString(rc.Status)
		row.AddCell().SetString(rc.ResolutionNote)
	}

	if err := file.Write(w); err != nil {
		return errors.Wrap(err, "write reconciliation export")
	}
	utils.LogInfo("Exported %d reconciliation cases", len(cases))
	return nil
}

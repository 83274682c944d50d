package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Govind-619/DonateKart/models"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Notifier tells people about checkout outcomes. Failures are logged by the
// caller and never undo an order.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *models.Order) error
	ReconciliationNeeded(ctx context.Context, rc *models.ReconciliationCase) error
}

// MailNotifier sends buyer confirmations and operator alerts by email
type MailNotifier struct {
	db       *gorm.DB
	config   utils.EmailConfig
	opsEmail string
	send     func(config utils.EmailConfig, to, subject, body string) error
}

func NewMailNotifier(db *gorm.DB, config utils.EmailConfig, opsEmail string) *MailNotifier {
	return &MailNotifier{db: db, config: config, opsEmail: opsEmail, send: utils.SendEmail}
}

func (n *MailNotifier) OrderPlaced(ctx context.Context, order *models.Order) error {
	if !n.config.Enabled() {
		utils.LogDebug("SMTP not configured, skipping confirmation for order ID: %d", order.ID)
		return nil
	}

	var user models.User
	if err := n.db.WithContext(ctx).First(&user, order.UserID).Error; err != nil {
		return errors.Wrapf(err, "load buyer %d", order.UserID)
	}
	if user.Email == "" {
		return nil
	}

	var items strings.Builder
	for _, item := range order.OrderItems {
		fmt.Fprintf(&items, "<tr><td>%s</td><td>%d</td><td>%s</td></tr>",
			item.ProductName, item.Quantity, utils.FormatRupees(item.Total))
	}
	body := fmt.Sprintf(`
		<h2>Thank you for your donation, %s!</h2>
		<p>Your order <strong>#%d</strong> has been placed.</p>
		<table>%s</table>
		<p>Discount: %s<br>Platform fee: %s<br><strong>Total paid: %s</strong></p>
		<p>Payment reference: %s</p>
	`, user.DisplayName(), order.ID, items.String(),
		utils.FormatRupees(order.Discount), utils.FormatRupees(order.PlatformFee),
		utils.FormatRupees(order.TotalAmount), order.PaymentID)

	if err := n.send(n.config, user.Email, fmt.Sprintf("%s order #%d confirmed", utils.AppName, order.ID), body); err != nil {
		return err
	}
	utils.LogInfo("Confirmation email sent for order ID: %d", order.ID)
	return nil
}

func (n *MailNotifier) ReconciliationNeeded(ctx context.Context, rc *models.ReconciliationCase) error {
	if !n.config.Enabled() || n.opsEmail == "" {
		utils.LogWarn("No operator mailbox configured, reconciliation case %d only logged", rc.ID)
		return nil
	}
	body := fmt.Sprintf(`
		<h2>Payment needs reconciliation</h2>
		<p>A verified payment could not be recorded as an order.</p>
		<ul>
			<li>Case: %d</li>
			<li>Buyer: %d</li>
			<li>Gateway order: %s</li>
			<li>Payment: %s</li>
			<li>Amount: %s</li>
			<li>Reason: %s</li>
		</ul>
	`, rc.ID, rc.UserID, rc.RazorpayOrderID, rc.PaymentID, utils.FormatRupees(rc.Amount), rc.Reason)
	return n.send(n.config, n.opsEmail, fmt.Sprintf("[%s] Reconciliation case #%d", utils.AppName, rc.ID), body)
}

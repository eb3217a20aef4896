package enums

// NotificationTemplate names the outbound message templates rendered by the
// external notification collaborator.
type NotificationTemplate string

const (
	NotificationReviewDue      NotificationTemplate = "review_due"
	NotificationReviewReminder NotificationTemplate = "review_reminder"
	NotificationInvoiceIssued  NotificationTemplate = "invoice_issued"
)

// String implements fmt.Stringer.
func (n NotificationTemplate) String() string {
	return string(n)
}

package events

// Topic constants for domain events emitted by the portal.
const (
	TopicOrderPlaced        = "order.placed"
	TopicGoodsReceiptClosed = "grn.completed"
	TopicWarrantyRegistered = "warranty.registered"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderPlaced,
		TopicGoodsReceiptClosed,
		TopicWarrantyRegistered,
	}
}

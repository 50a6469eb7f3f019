// Package wire defines the JSON messages exchanged between the shop and
// fulfillment services. Both queues carry UTF-8 JSON bodies; the
// correlation id is the only link between a request and its completion.
package wire

// Item is a catalog item snapshot. Prices are copied by value at submit
// time so later catalog changes cannot affect an in-flight order.
type Item struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OrderRequest is the body published to the create-order queue.
type OrderRequest struct {
	CorrelationID string `json:"correlationId"`
	Requester     string `json:"requester"`
	Items         []Item `json:"items"`
}

// CompletionMessage is the body published to the completion queue once an
// order record has been persisted. There is no failure variant: a request
// that is never completed is observed as a timeout on the shop side.
type CompletionMessage struct {
	CorrelationID string  `json:"correlationId"`
	Requester     string  `json:"requester"`
	Items         []Item  `json:"items"`
	TotalPrice    float64 `json:"totalPrice"`
}

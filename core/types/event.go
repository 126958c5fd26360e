package types

// Event is a structured record of a state change, published for off-chain
// observers. Delivery is fire-and-forget; engine correctness never depends
// on an event being observed.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

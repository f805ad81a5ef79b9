package request

// RecalculateRequest triggers a windowed recomputation of the daily
// valuation series. An empty From rebuilds from the first transaction.
type RecalculateRequest struct {
	From    string `json:"from,omitempty"`
	Through string `json:"through,omitempty"`
}

package domain

// SessionBudget is a read snapshot of the pipeline's cost ledger.
type SessionBudget struct {
	Ceiling      float64 `json:"ceiling"`
	Spent        float64 `json:"spent"`
	Reserved     float64 `json:"reserved"`
	Remaining    float64 `json:"remaining"`
	AssetsCosted int     `json:"assets_costed"`
	AvgPerAsset  float64 `json:"avg_per_asset"`
}

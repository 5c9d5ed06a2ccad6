package solaredge

const BASE_URL = "https://monitoringapi.solaredge.com"

type energyResponse struct {
	Energy struct {
		TimeUnit string `json:"timeUnit"`
		Unit     string `json:"unit"`
		Values   []struct {
			Date  string   `json:"date"` // "2025-06-01 00:00:00"
			Value *float64 `json:"value"`
		} `json:"values"`
	} `json:"energy"`
}

type detailsResponse struct {
	Details struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Status    string  `json:"status"`
		PeakPower float64 `json:"peakPower"`
		Location  struct {
			Country string `json:"country"`
			City    string `json:"city"`
		} `json:"location"`
	} `json:"details"`
}

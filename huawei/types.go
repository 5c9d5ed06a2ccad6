package huawei

import (
	"encoding/json"
	"fmt"
)

const BASE_URL = "https://eu5.fusionsolar.huawei.com"

const (
	loginPath       = "/thirdData/login"
	stationListPath = "/thirdData/getStationList"
	kpiDayPath      = "/thirdData/getKpiStationDay"
)

// Fail codes returned in the response body with HTTP 200.
const (
	failCodeSessionExpired = 305
	failCodeRateLimited    = 407
)

type envelope struct {
	Success  bool            `json:"success"`
	FailCode int             `json:"failCode"`
	Message  *string         `json:"message"`
	Data     json.RawMessage `json:"data"`
}

// APIError is a failure reported in the body of an otherwise successful response.
type APIError struct {
	FailCode int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("huawei api error, fail code %d", e.FailCode)
	}
	return fmt.Sprintf("huawei api error, fail code %d: %s", e.FailCode, e.Message)
}

type loginRequest struct {
	UserName   string `json:"userName"`
	SystemCode string `json:"systemCode"`
}

type station struct {
	StationCode string  `json:"stationCode"`
	StationName string  `json:"stationName"`
	Capacity    float64 `json:"capacity"`
	StationAddr string  `json:"stationAddr"`
}

type kpiRequest struct {
	StationCodes string `json:"stationCodes"`
	CollectTime  int64  `json:"collectTime"` // ms since epoch
}

type kpiDay struct {
	StationCode string         `json:"stationCode"`
	CollectTime int64          `json:"collectTime"`
	DataItemMap map[string]any `json:"dataItemMap"`
}

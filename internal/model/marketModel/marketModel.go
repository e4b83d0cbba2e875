package marketModel

import "github.com/shopspring/decimal"

type Quote struct {
	Ticker string
	Price  decimal.Decimal
}

// DayRange is the traded [Low, High] interval of the current session,
// bounds inclusive.
type DayRange struct {
	Ticker string
	Low    decimal.Decimal
	High   decimal.Decimal
}

// RawChart mirrors the v8 chart endpoint response.
type RawChart struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ApiError     `json:"error"`
	} `json:"chart"`
}

type ChartResult struct {
	Meta struct {
		Symbol               string  `json:"symbol"`
		RegularMarketPrice   float64 `json:"regularMarketPrice"`
		RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
		RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
	} `json:"meta"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
			Low   []*float64 `json:"low"`
			High  []*float64 `json:"high"`
		} `json:"quote"`
	} `json:"indicators"`
}

// RawSpark mirrors the v7 spark endpoint response.
type RawSpark struct {
	Spark struct {
		Result []SparkResult `json:"result"`
		Error  *ApiError     `json:"error"`
	} `json:"spark"`
}

type SparkResult struct {
	Symbol   string `json:"symbol"`
	Response []struct {
		Meta struct {
			RegularMarketPrice float64 `json:"regularMarketPrice"`
		} `json:"meta"`
		Indicators struct {
			Quote []struct {
				Close []*float64 `json:"close"`
			} `json:"quote"`
		} `json:"indicators"`
	} `json:"response"`
}

type ApiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

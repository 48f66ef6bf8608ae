package alpaca

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de respuesta de la API REST. Alpaca serializa cantidades y precios de
// trading como strings; decimal.Decimal los acepta directamente.

type apiBar struct {
	T time.Time `json:"t"`
	O float64   `json:"o"`
	H float64   `json:"h"`
	L float64   `json:"l"`
	C float64   `json:"c"`
	V float64   `json:"v"`
}

type barsResponse struct {
	Bars          map[string][]apiBar `json:"bars"`
	NextPageToken *string             `json:"next_page_token"`
}

type latestTradeResponse struct {
	Symbol string `json:"symbol"`
	Trade  struct {
		T time.Time `json:"t"`
		P float64   `json:"p"`
	} `json:"trade"`
}

type account struct {
	Equity      decimal.Decimal `json:"equity"`
	BuyingPower decimal.Decimal `json:"buying_power"`
	Cash        decimal.Decimal `json:"cash"`
	Status      string          `json:"status"`
}

type position struct {
	Symbol string          `json:"symbol"`
	Qty    decimal.Decimal `json:"qty"`
	Side   string          `json:"side"`
}

type orderRequest struct {
	Symbol        string      `json:"symbol"`
	Qty           string      `json:"qty"`
	Side          string      `json:"side"`
	Type          string      `json:"type"`
	TimeInForce   string      `json:"time_in_force"`
	ClientOrderID string      `json:"client_order_id"`
	OrderClass    string      `json:"order_class,omitempty"`
	TakeProfit    *takeProfit `json:"take_profit,omitempty"`
	StopLoss      *stopLoss   `json:"stop_loss,omitempty"`
}

type takeProfit struct {
	LimitPrice string `json:"limit_price"`
}

type stopLoss struct {
	StopPrice string `json:"stop_price"`
}

type order struct {
	ID             string           `json:"id"`
	ClientOrderID  string           `json:"client_order_id"`
	Symbol         string           `json:"symbol"`
	Side           string           `json:"side"`
	Status         string           `json:"status"`
	FilledAvgPrice *decimal.Decimal `json:"filled_avg_price"`
	ParentID       string           `json:"parent_id,omitempty"`
	Legs           []order          `json:"legs"`
}

type newsResponse struct {
	News []struct {
		Headline  string    `json:"headline"`
		Summary   string    `json:"summary"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"news"`
}

package exchange

type Tif string

const (
	TifIoc Tif = "Ioc"
	TifGtc Tif = "Gtc"
)

// OrderWire is one order as the venue expects it on the wire. Prices and
// sizes travel as trimmed decimal strings.
type OrderWire struct {
	Coin       string `json:"coin"`
	IsBuy      bool   `json:"isBuy"`
	Price      string `json:"price"`
	Size       string `json:"size"`
	ReduceOnly bool   `json:"reduceOnly"`
	Tif        Tif    `json:"tif"`
	Cloid      string `json:"cloid,omitempty"`
}

type OrderAction struct {
	Type   string      `json:"type"`
	Orders []OrderWire `json:"orders"`
}

type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

type SignedAction struct {
	Action    OrderAction `json:"action"`
	Nonce     uint64      `json:"nonce"`
	Signature Signature   `json:"signature"`
}

// Fill is the venue's report of an executed order.
type Fill struct {
	OrderID string
	Size    float64
	AvgPx   float64
}

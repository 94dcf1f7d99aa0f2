package shop

// Product is a catalog entry as returned by /product/all and /product/{id}.
type Product struct {
	ID          ID     `json:"id,omitempty"`
	ProductName string `json:"productName"`
	Price       Money  `json:"price"`
	Stock       *int   `json:"stock,omitempty"`
	Description string `json:"description,omitempty"`
	CreateTime  string `json:"createTime,omitempty"`
}

// StockOrZero returns the stock level, treating unknown as zero.
func (p Product) StockOrZero() int {
	if p.Stock == nil {
		return 0
	}
	return *p.Stock
}

// Order is a created order as returned by /order/user/{userId}.
type Order struct {
	ID         ID     `json:"id"`
	UserID     ID     `json:"userId"`
	ProductID  ID     `json:"productId"`
	Num        int    `json:"num"`
	TotalPrice Money  `json:"totalPrice"`
	CreateTime string `json:"createTime,omitempty"`
}

// OrderRequest is the legacy single-order payload for /order/add.
type OrderRequest struct {
	UserID    int64 `json:"userId"`
	ProductID ID    `json:"productId"`
	Num       int   `json:"num"`
}

// OrderItem is one entry of a batch order.
type OrderItem struct {
	ProductID ID  `json:"productId"`
	Num       int `json:"num"`
}

// BatchOrderRequest is the payload for /order/add/batch.
type BatchOrderRequest struct {
	UserID int64       `json:"userId"`
	Items  []OrderItem `json:"items"`
}

// PaymentRequest is the payload for /payment/create.
//
// Amount is informational: the payment service recomputes the total from
// the orders and must not trust the client's figure.
type PaymentRequest struct {
	UserID   int64  `json:"userId"`
	OrderIDs []ID   `json:"orderIds"`
	Amount   string `json:"amount"`
	Provider string `json:"provider"`
	Address  string `json:"address"`
}

// PaymentSession is the backend's answer to a payment request.
// Either field may be empty.
type PaymentSession struct {
	PaymentNo  string `json:"paymentNo,omitempty"`
	PaymentURL string `json:"paymentUrl,omitempty"`
}

package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// orderBookRequest es el body de un item del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de GET /book y de cada item en POST /books.
type orderBookResponse struct {
	AssetID   string         `json:"asset_id"`
	Timestamp string         `json:"timestamp"`
	Bids      []bookEntryRaw `json:"bids"`
	Asks      []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// clobOrderResponse es la respuesta de POST /order.
type clobOrderResponse struct {
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderID"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
}

// clobOrderDetail es la respuesta de GET /data/order/{id}.
type clobOrderDetail struct {
	ID           string `json:"id"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// --- Gamma API ---

// gammaMarketsResponse es la respuesta de GET /markets de Gamma.
type gammaMarketsResponse []gammaMarket

// gammaMarket contiene la metadata de resolución de un mercado.
// Gamma devuelve algunos campos numéricos como strings JSON.
type gammaMarket struct {
	ConditionID   string `json:"conditionId"`
	Question      string `json:"question"`
	Slug          string `json:"slug"`
	EndDateISO    string `json:"endDateIso"`
	OutcomePrices string `json:"outcomePrices"` // JSON embebido: `["1","0"]`
	UMAResolution string `json:"umaResolutionStatus"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
}

// outcomePrices decodifica el array embebido de precios finales.
func (g gammaMarket) outcomePrices() []string {
	var prices []string
	if err := json.Unmarshal([]byte(g.OutcomePrices), &prices); err != nil {
		return nil
	}
	return prices
}

package models

// Tier is the confidence bucket of a search result. It drives both the
// retrieval thresholds and the caller's response phrasing.
type Tier string

const (
	// TierAlta: direct, confident match.
	TierAlta Tier = "alta"
	// TierMedia: no exact hit; the result lists closest alternatives.
	TierMedia Tier = "media"
	// TierNula: nothing cleared either threshold; the product is outside the
	// catalog's domain. Suppliers is always empty at this tier.
	TierNula Tier = "nula"
)

// ProductCandidate is one product surfaced by hybrid retrieval, joined with
// the supplier fields the aggregation step needs. A product found by both
// retrieval paths keeps both scores.
type ProductCandidate struct {
	ProductID         int64
	SupplierID        int64
	SupplierProductID int64
	Name              string
	Brand             string
	Presentation      string
	Unit              string
	UnitPrice         float64
	Currency          string
	Categories        []string

	LexScore float64 // trigram similarity in [0,1]; 0 if not found lexically
	VecScore float64 // 1 - cosine distance; 0 if not found by vector search

	SupplierName           string
	SupplierContact        string
	SupplierPhoneField     string
	SupplierWebsite        string
	SupplierRating         *float64
	SupplierMembershipTier *float64
}

// PriceContext is one matching product's price attached to a supplier result
// so the caller can answer "what does it cost" without a second lookup. Not
// surfaced by default.
type PriceContext struct {
	Product      string  `json:"product"`
	Brand        string  `json:"brand,omitempty"`
	Price        float64 `json:"price"`
	Presentation string  `json:"presentation,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	Currency     string  `json:"currency,omitempty"`
}

// SupplierResult is one supplier in a ranked search response.
type SupplierResult struct {
	SupplierID   int64          `json:"supplier_id"`
	Name         string         `json:"name"`
	BestScore    float64        `json:"best_score"`
	MatchCount   int            `json:"match_count"`
	Examples     []string       `json:"examples"`
	SalesContact string         `json:"sales_contact,omitempty"`
	PhoneNumbers []string       `json:"phone_numbers,omitempty"`
	PhoneLinks   []string       `json:"phone_links,omitempty"`
	Website      string         `json:"website,omitempty"`
	PriceContext []PriceContext `json:"price_context,omitempty"`
}

// SearchResult is the outcome of a tiered product search.
//
// Two distinct situations produce TierNula: nothing in the catalog matched
// the query, or the product matched but not under the requested brand
// filter. Only the latter populates AvailableBrands, so a caller can tell
// "we don't carry that product" from "we carry it, in these brands".
type SearchResult struct {
	Tier            Tier             `json:"tier"`
	Suppliers       []SupplierResult `json:"suppliers"`
	HiddenCount     int              `json:"hidden_count"`
	AvailableBrands []string         `json:"available_brands,omitempty"`
}

// SupplierDetail is the point-lookup record for one supplier.
type SupplierDetail struct {
	SupplierID   int64    `json:"supplier_id"`
	Name         string   `json:"name"`
	SalesContact string   `json:"sales_contact,omitempty"`
	PhoneNumbers []string `json:"phone_numbers,omitempty"`
	PhoneLinks   []string `json:"phone_links,omitempty"`
	Website      string   `json:"website,omitempty"`
}

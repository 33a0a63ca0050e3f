package models

// Supplier is a row in the supplier master list. The id is assigned
// externally and is the business key: re-ingesting the same id updates the
// record in place, and the sync engine never deletes suppliers.
type Supplier struct {
	ID           int64
	Name         string // display / trade name
	LegalName    string
	SalesContact string
	// PhoneField is the raw multi-number cell as delivered; it is split and
	// normalized at the search boundary, not at ingest time, so a fix to the
	// phone parser applies retroactively.
	PhoneField     string
	Website        string
	Delivers       bool
	MinOrder       float64
	OffersCredit   bool
	Rating         *float64
	MembershipTier *float64 // lower tier sorts first; nil sorts last
}

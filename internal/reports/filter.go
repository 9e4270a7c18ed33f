package reports

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Filter carries the caller supplied report parameters.
type Filter struct {
	ShopID           int64     `json:"shopId" validate:"required,gt=0"`
	EntityID         int64     `json:"entityId,omitempty" validate:"omitempty,gt=0"`
	SearchBy         string    `json:"searchBy,omitempty" validate:"max=120"`
	From             time.Time `json:"from,omitempty"`
	To               time.Time `json:"to,omitempty"`
	IDs              []int64   `json:"ids,omitempty" validate:"omitempty,dive,gt=0"`
	TransactionTypes []string  `json:"transactionTypes,omitempty" validate:"omitempty,dive,required,max=40"`
}

// Meta is the display metadata printed in document headers.
type Meta struct {
	ShopName   string `json:"shopName,omitempty"`
	EntityName string `json:"entityName,omitempty"`
}

// Request asks for one report. Format is only read by Generate.
type Request struct {
	Kind   Kind         `json:"kind"`
	Format OutputFormat `json:"format,omitempty"`
	Filter Filter       `json:"filter"`
	Meta   Meta         `json:"meta"`
}

// Validate checks required filters for the kind. Missing shop or entity ids
// yield a MissingFilterError.
func (r Request) Validate() error {
	kind, err := ParseKind(string(r.Kind))
	if err != nil {
		return err
	}
	if err := validate.Struct(r.Filter); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.Field() == "ShopID" {
					return &MissingFilterError{Field: "shop_id"}
				}
			}
			return fmt.Errorf("%w: %s", ErrInvalidFilter, fieldErrs[0].Error())
		}
		return err
	}
	if kind.NeedsEntity() && r.Filter.EntityID == 0 {
		return &MissingFilterError{Field: "entity_id"}
	}
	if !r.Filter.From.IsZero() && !r.Filter.To.IsZero() && r.Filter.To.Before(r.Filter.From) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidFilter)
	}
	return nil
}

// normalized resolves the kind slug to its canonical form. Unknown kinds are
// kept as given so Validate can report them.
func (r Request) normalized() Request {
	if kind, err := ParseKind(string(r.Kind)); err == nil {
		r.Kind = kind
	}
	return r
}

// Period is the filter date range.
func (f Filter) Period() Period {
	return Period{From: f.From, To: f.To}
}

// Query is what a Source is asked for. Ledger kinds translate the entity id
// into a customer or vendor id.
type Query struct {
	ShopID           int64
	CustomerID       int64
	VendorID         int64
	SearchBy         string
	From             time.Time
	To               time.Time
	IDs              []int64
	TransactionTypes []string
}

// QueryFor derives the source query for a report kind.
func QueryFor(kind Kind, f Filter) Query {
	q := Query{
		ShopID:           f.ShopID,
		SearchBy:         strings.TrimSpace(f.SearchBy),
		From:             f.From,
		To:               f.To,
		IDs:              f.IDs,
		TransactionTypes: f.TransactionTypes,
	}
	switch kind {
	case KindCustomerLedger:
		q.CustomerID = f.EntityID
	case KindVendorLedger:
		q.VendorID = f.EntityID
	}
	return q
}

// CacheKey renders the query as stable key parts.
func (q Query) CacheKey() []string {
	ids := make([]string, 0, len(q.IDs))
	for _, id := range q.IDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return []string{
		strconv.FormatInt(q.ShopID, 10),
		"c" + strconv.FormatInt(q.CustomerID, 10),
		"v" + strconv.FormatInt(q.VendorID, 10),
		dateToken(q.From),
		dateToken(q.To),
		strings.Join(ids, ","),
		strings.Join(q.TransactionTypes, ","),
		strings.ToLower(q.SearchBy),
	}
}

func dateToken(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

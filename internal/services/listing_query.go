package services

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/bruinswipes/bruinswipes-backend/internal/store"
)

// Each filter dimension is a pointer: nil means unset, not zero.
type PriceRange struct {
	Min *float64 `json:"price_min"`
	Max *float64 `json:"price_max"`
}

// TimeRange bounds the meal slot, in unix milliseconds.
type TimeRange struct {
	Min *int64 `json:"time_min"`
	Max *int64 `json:"time_max"`
}

type SortSpec struct {
	OrderBy string `json:"order_by"`
	Asc     *bool  `json:"asc"`
}

// ListingFilter is the search request body of /get-listings.
type ListingFilter struct {
	Locations  []string   `json:"locations"`
	PriceRange PriceRange `json:"price_range"`
	TimeRange  TimeRange  `json:"time_range"`
	Selling    *bool      `json:"selling"`
	Sort       SortSpec   `json:"sort"`
	GetSelf    bool       `json:"get_self"`
}

var sortableListingFields = map[string]bool{
	"price":       true,
	"time":        true,
	"time_posted": true,
	"location":    true,
}

// BuildListingQuery turns a filter into a store query. get_self ignores every
// other field and matches the owner's listings, resolved or not. Otherwise
// all set dimensions are ANDed together with resolved == false.
func BuildListingQuery(f ListingFilter, ownerEmail string) store.ListingQuery {
	if f.GetSelf {
		return store.ListingQuery{Filter: bson.D{{Key: "user.email", Value: ownerEmail}}}
	}

	clauses := bson.A{}

	locations := bson.A{}
	for _, loc := range f.Locations {
		if loc = strings.TrimSpace(loc); loc != "" {
			locations = append(locations, bson.D{{Key: "location", Value: loc}})
		}
	}
	if len(locations) > 0 {
		clauses = append(clauses, bson.D{{Key: "$or", Value: locations}})
	}

	if f.PriceRange.Min != nil {
		clauses = append(clauses, bson.D{{Key: "price", Value: bson.D{{Key: "$gte", Value: *f.PriceRange.Min}}}})
	}
	if f.PriceRange.Max != nil {
		clauses = append(clauses, bson.D{{Key: "price", Value: bson.D{{Key: "$lte", Value: *f.PriceRange.Max}}}})
	}
	if f.TimeRange.Min != nil {
		clauses = append(clauses, bson.D{{Key: "time", Value: bson.D{{Key: "$gte", Value: *f.TimeRange.Min}}}})
	}
	if f.TimeRange.Max != nil {
		clauses = append(clauses, bson.D{{Key: "time", Value: bson.D{{Key: "$lte", Value: *f.TimeRange.Max}}}})
	}
	if f.Selling != nil {
		clauses = append(clauses, bson.D{{Key: "selling", Value: *f.Selling}})
	}
	clauses = append(clauses, bson.D{{Key: "resolved", Value: false}})

	q := store.ListingQuery{Filter: bson.D{{Key: "$and", Value: clauses}}}
	if sortableListingFields[f.Sort.OrderBy] {
		dir := 1
		if f.Sort.Asc != nil && !*f.Sort.Asc {
			dir = -1
		}
		q.Sort = bson.D{{Key: f.Sort.OrderBy, Value: dir}}
	}
	return q
}

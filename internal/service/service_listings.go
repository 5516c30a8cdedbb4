package service

import "memberdesk/backend/internal/pagination"

var defaultPageSizes = []int{10, 20, 50, 100}

var ApplicationsListing = pagination.Listing{
	Name:            "applications",
	SortProperties:  []string{"id", "lastname", "firstname", "email", "city", "date_of_submission", "num_shares"},
	DefaultSort:     pagination.Sorting{Property: "date_of_submission", Direction: pagination.SortDescending},
	PageSizes:       defaultPageSizes,
	DefaultPageSize: 20,
}

var MembersListing = pagination.Listing{
	Name:            "members",
	SortProperties:  []string{"membership_number", "lastname", "firstname", "email", "city", "membership_date"},
	DefaultSort:     pagination.Sorting{Property: "membership_number", Direction: pagination.SortAscending},
	PageSizes:       defaultPageSizes,
	DefaultPageSize: 20,
}

var InvoicesListing = pagination.Listing{
	Name:            "dues-invoices",
	SortProperties:  []string{"invoice_no", "invoice_date", "invoice_amount", "membership_number", "email"},
	DefaultSort:     pagination.Sorting{Property: "invoice_no", Direction: pagination.SortAscending},
	PageSizes:       defaultPageSizes,
	DefaultPageSize: 50,
}

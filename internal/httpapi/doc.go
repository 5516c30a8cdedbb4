// Package httpapi groups HTTP handlers by domain so route behavior is easier to locate.
//
// Domain files:
// - public pages and documents (join form, email verification, PDFs, login)
// - applications and their reception tracking
// - members, certificates and membership loss
// - shares packages
// - dues invoices, reductions and payments
// - CSV import and export
// - staff accounts
// - statistics
package httpapi

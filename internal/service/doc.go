// Package service groups application logic by domain areas to keep maintenance localized.
//
// Domain files:
// - applications: join form, email confirmation, reception tracking
// - members: acceptance, membership loss, certificates
// - shares: share acquisitions and share information
// - dues: yearly invoices, reductions, payments
// - staff: staff accounts and login
// - impexp: CSV import and export
// - statistics: membership figures
package service

package persistence

import "strings"

var schemaTemplate = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id {{id}},
		firstname TEXT NOT NULL,
		lastname TEXT NOT NULL,
		email TEXT NOT NULL,
		address1 TEXT NOT NULL DEFAULT '',
		address2 TEXT NOT NULL DEFAULT '',
		postcode TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		locale TEXT NOT NULL DEFAULT 'en',
		date_of_birth {{date}},
		membership_type TEXT NOT NULL DEFAULT 'normal',
		is_legal_entity {{bool}},
		court_of_law TEXT NOT NULL DEFAULT '',
		registration_number TEXT NOT NULL DEFAULT '',
		num_shares INTEGER NOT NULL DEFAULT 0,
		date_of_submission {{timestamp}},
		email_confirm_code TEXT UNIQUE,
		email_is_confirmed {{bool}},
		signature_received {{bool}},
		signature_received_date {{date}},
		signature_confirmed {{bool}},
		signature_confirmed_date {{date}},
		payment_received {{bool}},
		payment_received_date {{date}},
		payment_confirmed {{bool}},
		payment_confirmed_date {{date}},
		accountant_comment TEXT NOT NULL DEFAULT '',
		membership_accepted {{bool}},
		membership_date {{date}},
		membership_number BIGINT UNIQUE,
		membership_loss_date {{date}},
		membership_loss_type TEXT NOT NULL DEFAULT '',
		certificate_token TEXT,
		certificate_token_date {{timestamp}},
		created_at {{timestamp}},
		updated_at {{timestamp}}
	)`,
	`CREATE INDEX IF NOT EXISTS members_lastname_idx ON members (lastname)`,
	`CREATE TABLE IF NOT EXISTS shares (
		id {{id}},
		member_id BIGINT NOT NULL REFERENCES members (id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		date_of_acquisition {{date}},
		reference_code TEXT NOT NULL DEFAULT '',
		signature_received {{bool}},
		signature_received_date {{date}},
		signature_confirmed {{bool}},
		signature_confirmed_date {{date}},
		payment_received {{bool}},
		payment_received_date {{date}},
		payment_confirmed {{bool}},
		payment_confirmed_date {{date}},
		accountant_comment TEXT NOT NULL DEFAULT '',
		created_at {{timestamp}},
		updated_at {{timestamp}}
	)`,
	`CREATE INDEX IF NOT EXISTS shares_member_idx ON shares (member_id)`,
	`CREATE TABLE IF NOT EXISTS member_dues (
		member_id BIGINT NOT NULL REFERENCES members (id) ON DELETE CASCADE,
		year INTEGER NOT NULL,
		start_code TEXT NOT NULL DEFAULT '',
		amount {{amount}},
		reduced {{bool}},
		amount_reduced {{amount}},
		invoiced {{bool}},
		invoice_date {{date}},
		invoice_no INTEGER NOT NULL DEFAULT 0,
		balance {{amount}},
		balanced {{bool}},
		paid {{bool}},
		amount_paid {{amount}},
		paid_date {{date}},
		PRIMARY KEY (member_id, year)
	)`,
	`CREATE TABLE IF NOT EXISTS dues_invoices (
		id {{id}},
		year INTEGER NOT NULL,
		invoice_no INTEGER NOT NULL,
		invoice_no_string TEXT NOT NULL,
		invoice_date {{date}},
		invoice_amount {{amount}},
		is_cancelled {{bool}},
		cancelled_date {{date}},
		is_reversal {{bool}},
		is_altered {{bool}},
		member_id BIGINT NOT NULL REFERENCES members (id) ON DELETE CASCADE,
		membership_number BIGINT NOT NULL DEFAULT 0,
		email TEXT NOT NULL DEFAULT '',
		token TEXT NOT NULL,
		preceding_invoice_no INTEGER NOT NULL DEFAULT 0,
		succeeding_invoice_no INTEGER NOT NULL DEFAULT 0,
		UNIQUE (year, invoice_no)
	)`,
	`CREATE INDEX IF NOT EXISTS dues_invoices_member_idx ON dues_invoices (member_id, year)`,
	`CREATE TABLE IF NOT EXISTS staff (
		id {{id}},
		login TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		last_password_change {{timestamp}},
		created_at {{timestamp}},
		updated_at {{timestamp}}
	)`,
	`CREATE TABLE IF NOT EXISTS staff_groups (
		staff_id BIGINT NOT NULL REFERENCES staff (id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		PRIMARY KEY (staff_id, name)
	)`,
}

var dialectTypes = map[string]*strings.Replacer{
	DriverSQLite: strings.NewReplacer(
		"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{bool}}", "INTEGER NOT NULL DEFAULT 0",
		"{{date}}", "TEXT",
		"{{timestamp}}", "TEXT",
		"{{amount}}", "TEXT NOT NULL DEFAULT '0'",
	),
	DriverPostgres: strings.NewReplacer(
		"{{id}}", "BIGSERIAL PRIMARY KEY",
		"{{bool}}", "BOOLEAN NOT NULL DEFAULT FALSE",
		"{{date}}", "DATE",
		"{{timestamp}}", "TIMESTAMPTZ",
		"{{amount}}", "NUMERIC(12,2) NOT NULL DEFAULT 0",
	),
}

func schemaStatements(dialect string) []string {
	replacer, ok := dialectTypes[dialect]
	if !ok {
		replacer = dialectTypes[DriverSQLite]
	}
	statements := make([]string, 0, len(schemaTemplate))
	for _, statement := range schemaTemplate {
		statements = append(statements, replacer.Replace(statement))
	}
	return statements
}

package httpapi

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/service"
)

//go:embed templates/*.html
var pageFS embed.FS

var pageLabels = map[string]map[string]string{
	domain.LocaleEnglish: {
		"title":                  "Apply for membership",
		"has_errors":             "Please correct the marked fields.",
		"firstname":              "First name",
		"lastname":               "Last name",
		"email":                  "Email address",
		"address1":               "Address",
		"address2":               "Address (continued)",
		"postcode":               "Postcode",
		"city":                   "City",
		"country":                "Country (two letter code)",
		"date_of_birth":          "Date of birth",
		"court_of_law":           "Court of registration",
		"registration_number":    "Registration number",
		"membership_type":        "Membership",
		"normal":                 "Normal member",
		"investing":              "Investing member",
		"is_legal_entity":        "I apply for a legal entity",
		"num_shares":             "Number of shares",
		"accept_statute":         "I accept the statute",
		"accept_data_protection": "I accept the data protection terms",
		"submit":                 "Submit application",
		"submitted_title":        "Thank you for your application",
		"submitted_text":         "We sent a confirmation link to",
		"verified_title":         "Email address confirmed",
		"verified_text":          "Please print the declaration of membership, sign it and send it to us.",
		"download_form":          "Download declaration of membership (PDF)",
	},
	domain.LocaleGerman: {
		"title":                  "Mitgliedschaft beantragen",
		"has_errors":             "Bitte korrigieren Sie die markierten Felder.",
		"firstname":              "Vorname",
		"lastname":               "Nachname",
		"email":                  "E-Mail-Adresse",
		"address1":               "Anschrift",
		"address2":               "Anschrift (Fortsetzung)",
		"postcode":               "Postleitzahl",
		"city":                   "Ort",
		"country":                "Land (Kürzel)",
		"date_of_birth":          "Geburtsdatum",
		"court_of_law":           "Registergericht",
		"registration_number":    "Registernummer",
		"membership_type":        "Mitgliedschaft",
		"normal":                 "Ordentliches Mitglied",
		"investing":              "Investierendes Mitglied",
		"is_legal_entity":        "Ich beantrage für eine juristische Person",
		"num_shares":             "Anzahl Geschäftsanteile",
		"accept_statute":         "Ich erkenne die Satzung an",
		"accept_data_protection": "Ich stimme den Datenschutzbestimmungen zu",
		"submit":                 "Antrag absenden",
		"submitted_title":        "Vielen Dank für Ihren Antrag",
		"submitted_text":         "Wir haben einen Bestätigungslink gesendet an",
		"verified_title":         "E-Mail-Adresse bestätigt",
		"verified_text":          "Bitte drucken Sie die Beitrittserklärung aus, unterschreiben Sie sie und senden Sie sie uns zu.",
		"download_form":          "Beitrittserklärung herunterladen (PDF)",
	},
}

type formField struct {
	Name     string
	Type     string
	Value    string
	Required bool
}

type pageView struct {
	Locale       string
	Organisation string
	Form         domain.ApplicationForm
	Errors       domain.FieldErrors
	Fields       []formField
	MaxShares    int
	SharePrice   string
	Member       domain.Member
	FormURL      string
}

func (v pageView) T(key string) string {
	if label, ok := pageLabels[v.Locale][key]; ok {
		return label
	}
	return pageLabels[domain.LocaleEnglish][key]
}

// joinPage renders the public application form and the pages that follow
// it.
type joinPage struct {
	templates *template.Template
	config    service.Config
}

func newJoinPage(config service.Config) (*joinPage, error) {
	templates, err := template.ParseFS(pageFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}
	return &joinPage{templates: templates, config: config}, nil
}

func (p *joinPage) view(locale string) pageView {
	return pageView{
		Locale:       locale,
		Organisation: p.config.OrganisationName,
		MaxShares:    p.config.MaxShares,
		SharePrice:   p.config.SharePrice.StringFixed(2),
	}
}

func (p *joinPage) render(w http.ResponseWriter, status int, name string, view pageView) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, view); err != nil {
		recordError(w, fmt.Errorf("render page %s: %w", name, err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func formFields(form domain.ApplicationForm) []formField {
	return []formField{
		{Name: "firstname", Type: "text", Value: form.Firstname, Required: true},
		{Name: "lastname", Type: "text", Value: form.Lastname, Required: true},
		{Name: "email", Type: "email", Value: form.Email, Required: true},
		{Name: "address1", Type: "text", Value: form.Address1, Required: true},
		{Name: "address2", Type: "text", Value: form.Address2},
		{Name: "postcode", Type: "text", Value: form.Postcode, Required: true},
		{Name: "city", Type: "text", Value: form.City, Required: true},
		{Name: "country", Type: "text", Value: form.Country, Required: true},
		{Name: "date_of_birth", Type: "date", Value: form.DateOfBirth, Required: true},
		{Name: "court_of_law", Type: "text", Value: form.CourtOfLaw},
		{Name: "registration_number", Type: "text", Value: form.RegistrationNumber},
	}
}

// requestLocale prefers an explicit locale parameter over Accept-Language.
func requestLocale(r *http.Request) string {
	if locale, ok := domain.MatchLocale(r.FormValue("locale")); ok {
		return locale
	}
	locale, _ := domain.MatchLocale(r.Header.Get("Accept-Language"))
	return locale
}

func parseApplicationForm(r *http.Request) domain.ApplicationForm {
	numShares, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue("num_shares")))
	checked := func(name string) bool {
		value := strings.ToLower(strings.TrimSpace(r.PostFormValue(name)))
		return value == "on" || value == "true" || value == "1"
	}
	return domain.ApplicationForm{
		Firstname:            r.PostFormValue("firstname"),
		Lastname:             r.PostFormValue("lastname"),
		Email:                r.PostFormValue("email"),
		Address1:             r.PostFormValue("address1"),
		Address2:             r.PostFormValue("address2"),
		Postcode:             r.PostFormValue("postcode"),
		City:                 r.PostFormValue("city"),
		Country:              r.PostFormValue("country"),
		Locale:               r.PostFormValue("locale"),
		DateOfBirth:          r.PostFormValue("date_of_birth"),
		MembershipType:       r.PostFormValue("membership_type"),
		IsLegalEntity:        checked("is_legal_entity"),
		CourtOfLaw:           r.PostFormValue("court_of_law"),
		RegistrationNumber:   r.PostFormValue("registration_number"),
		NumShares:            numShares,
		AcceptStatute:        checked("accept_statute"),
		AcceptDataProtection: checked("accept_data_protection"),
	}
}

package latex

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberdesk/backend/internal/domain"
	"memberdesk/backend/internal/logging"
)

const fakeLatex = `#!/bin/sh
for arg; do
  case "$arg" in
    -output-directory=*) out="${arg#-output-directory=}" ;;
    *.tex) src="$arg" ;;
  esac
done
name=$(basename "$src" .tex)
{ printf '%%PDF-fake\n'; cat "$src"; } > "$out/$name.pdf"
`

const brokenLatex = `#!/bin/sh
echo "This is pdfTeX"
echo "! Undefined control sequence."
exit 1
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "pdflatex")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func testMember() domain.Member {
	return domain.Member{
		Firstname:        "Ada",
		Lastname:         "Lovelace & Co_",
		Email:            "ada@example.org",
		Address1:         "Main Street 1",
		Postcode:         "12345",
		City:             "Berlin",
		Country:          "DE",
		DateOfBirth:      "1990-12-10",
		MembershipType:   domain.MembershipTypeNormal,
		NumShares:        3,
		MembershipDate:   "2024-02-01",
		MembershipNumber: 17,
	}
}

func TestRenderRunsBinary(t *testing.T) {
	renderer, err := NewRenderer(Config{Binary: writeScript(t, fakeLatex), Timeout: 5 * time.Second}, logging.Test(t))
	require.NoError(t, err)

	pdf, err := renderer.Render(context.Background(), "dues_invoice", map[string]any{
		"Locale":       domain.LocaleGerman,
		"Organisation": "Cooperative eG",
		"Member":       testMember(),
		"Invoice": domain.DuesInvoice{
			Year:             2025,
			InvoiceNo:        4,
			InvoiceNoString:  "COOP-dues2025-0004",
			InvoiceDate:      "2025-03-01",
			InvoiceAmount:    decimal.RequireFromString("37.5"),
			MembershipNumber: 17,
		},
	})
	require.NoError(t, err)

	content := string(pdf)
	assert.True(t, strings.HasPrefix(content, "%PDF-fake"))
	assert.Contains(t, content, `Rechnung COOP-dues2025-0004`)
	assert.Contains(t, content, `37,50~\euro{}`)
	assert.Contains(t, content, `01.03.2025`)
	assert.Contains(t, content, `Lovelace \& Co\_`)
	assert.Contains(t, content, `[ngerman]{babel}`)
}

func TestRenderReportsLatexErrors(t *testing.T) {
	renderer, err := NewRenderer(Config{Binary: writeScript(t, brokenLatex), Timeout: 5 * time.Second}, logging.Test(t))
	require.NoError(t, err)

	_, err = renderer.Render(context.Background(), "certificate", map[string]any{
		"Locale":       domain.LocaleEnglish,
		"Organisation": "Cooperative eG",
		"Member":       testMember(),
		"SharesTotal":  3,
		"SharesValue":  decimal.NewFromInt(150),
		"IssuedOn":     "2025-01-01",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Undefined control sequence")
}

func TestRenderRetriesTimeouts(t *testing.T) {
	renderer, err := NewRenderer(Config{Timeout: 20 * time.Millisecond}, logging.Test(t))
	require.NoError(t, err)

	calls := 0
	renderer.run = func(ctx context.Context, dir, _ string, _ ...string) ([]byte, error) {
		calls++
		if calls == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, os.WriteFile(filepath.Join(dir, "document.pdf"), []byte("%PDF-retry"), 0o600)
	}

	pdf, err := renderer.Render(context.Background(), "certificate", map[string]any{
		"Locale":       domain.LocaleEnglish,
		"Organisation": "Cooperative eG",
		"Member":       testMember(),
		"SharesTotal":  3,
		"SharesValue":  decimal.NewFromInt(150),
		"IssuedOn":     "2025-01-01",
	})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-retry", string(pdf))
	assert.Equal(t, 2, calls)
}

func TestRenderGivesUpAfterRepeatedTimeouts(t *testing.T) {
	renderer, err := NewRenderer(Config{Timeout: 10 * time.Millisecond}, logging.Test(t))
	require.NoError(t, err)

	calls := 0
	renderer.run = func(ctx context.Context, _, _ string, _ ...string) ([]byte, error) {
		calls++
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err = renderer.Render(context.Background(), "certificate", map[string]any{
		"Locale":       domain.LocaleEnglish,
		"Organisation": "Cooperative eG",
		"Member":       testMember(),
		"IssuedOn":     "2025-01-01",
		"SharesValue":  decimal.Zero,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 2, calls)
}

func TestSourceTemplates(t *testing.T) {
	renderer, err := NewRenderer(Config{}, nil)
	require.NoError(t, err)

	t.Run("application form english", func(t *testing.T) {
		member := testMember()
		source, err := renderer.Source("application_form", map[string]any{
			"Locale":       domain.LocaleEnglish,
			"Organisation": "Cooperative eG",
			"Member":       member,
			"ConfirmCode":  "ABC123",
			"SubmittedOn":  "2025-01-15",
			"SharePrice":   decimal.NewFromInt(50),
			"SharesValue":  decimal.NewFromInt(150),
		})
		require.NoError(t, err)
		text := string(source)
		assert.Contains(t, text, "Declaration of membership")
		assert.Contains(t, text, "December 10, 1990")
		assert.Contains(t, text, `3 $\times$ 50.00~\euro{} = 150.00~\euro{}`)
		assert.NotContains(t, text, "Registration number")
	})

	t.Run("application form legal entity", func(t *testing.T) {
		member := testMember()
		member.IsLegalEntity = true
		member.CourtOfLaw = "AG Berlin"
		member.RegistrationNumber = "GnR 1#2"
		source, err := renderer.Source("application_form", map[string]any{
			"Locale":       domain.LocaleGerman,
			"Organisation": "Cooperative eG",
			"Member":       member,
			"ConfirmCode":  "ABC123",
			"SubmittedOn":  "2025-01-15",
			"SharePrice":   decimal.NewFromInt(50),
			"SharesValue":  decimal.NewFromInt(150),
		})
		require.NoError(t, err)
		text := string(source)
		assert.Contains(t, text, "Beitrittserklärung")
		assert.Contains(t, text, `GnR 1\#2`)
		assert.NotContains(t, text, "Geburtsdatum")
	})

	t.Run("reversal", func(t *testing.T) {
		source, err := renderer.Source("dues_reversal", map[string]any{
			"Locale":       domain.LocaleEnglish,
			"Organisation": "Cooperative eG",
			"Member":       testMember(),
			"Invoice": domain.DuesInvoice{
				Year:               2025,
				InvoiceNo:          5,
				InvoiceNoString:    "COOP-dues2025-0005",
				InvoiceDate:        "2025-06-01",
				InvoiceAmount:      decimal.RequireFromString("-50"),
				IsReversal:         true,
				PrecedingInvoiceNo: 4,
			},
		})
		require.NoError(t, err)
		text := string(source)
		assert.Contains(t, text, "Reversal invoice COOP-dues2025-0005")
		assert.Contains(t, text, "Invoice no.~4")
		assert.Contains(t, text, `-50.00~\euro{}`)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := renderer.Source("missing", nil)
		require.Error(t, err)
	})
}

func TestEscape(t *testing.T) {
	assert.Equal(t, `50\% \& \$5 \textbackslash{}x \{a\} \#1 a\_b \textasciitilde{} \textasciicircum{}`,
		Escape(`50% & $5 \x {a} #1 a_b ~ ^`))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1234,50", formatMoney(domain.LocaleGerman, decimal.RequireFromString("1234.5")))
	assert.Equal(t, "1234.50", formatMoney(domain.LocaleEnglish, decimal.RequireFromString("1234.5")))
	assert.Equal(t, "24.12.2025", formatDate(domain.LocaleGerman, "2025-12-24"))
	assert.Equal(t, "December 24, 2025", formatDate(domain.LocaleEnglish, "2025-12-24"))
	assert.Equal(t, `n/a\_`, formatDate(domain.LocaleEnglish, "n/a_"))
}

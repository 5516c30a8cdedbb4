package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberdesk/backend/internal/config"
)

func TestServiceConfig(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Membership.SharePrice = "100,00"
	cfg.Dues.AnnualAmount = "62.5"

	svcConfig, err := serviceConfig(cfg)
	require.NoError(t, err)
	assert.True(t, svcConfig.SharePrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, svcConfig.AnnualDues.Equal(decimal.RequireFromString("62.5")))

	for _, tc := range []struct {
		name       string
		sharePrice string
		annualDues string
	}{
		{name: "zero annual dues", sharePrice: "50", annualDues: "0"},
		{name: "negative annual dues", sharePrice: "50", annualDues: "-1"},
		{name: "zero share price", sharePrice: "0", annualDues: "50"},
		{name: "unparsable amount", sharePrice: "fifty", annualDues: "50"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			broken := cfg
			broken.Membership.SharePrice = tc.sharePrice
			broken.Dues.AnnualAmount = tc.annualDues
			_, err := serviceConfig(broken)
			require.Error(t, err)
		})
	}
}

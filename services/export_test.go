package services_test

import (
	"context"
	"strings"
	"testing"

	"affiliate-engine/models"
	"affiliate-engine/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportAffiliateUsers(t *testing.T) {
	f := newFixture(t, withUploader())
	f.scenario(t)
	f.commission(addrA, addrB, "12.5", models.CommissionSignup, models.CommissionConfirmed, 1)

	res, err := f.svc.ExportAffiliateUsers(context.Background(), addrA, services.UserFilter{IncludeNetwork: true, Limit: 1, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows, "paging is ignored")
	assert.True(t, strings.HasPrefix(res.Key, "exports/affiliates/"+addrA+"/"))
	assert.True(t, strings.HasSuffix(res.Key, ".csv"))
	assert.Equal(t, "https://cdn.example.com/"+res.Key, res.URL)
	assert.Equal(t, "text/csv", f.uploader.contentType)

	lines := f.uploader.lines()
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "address,username,email,role_tier"))
	assert.Contains(t, lines[2], addrB+",bob,bob@example.com,NOMAD,2,1,verified,"+addrA)
	assert.Contains(t, lines[2], ",12.5,")
	assert.Contains(t, lines[3], addrD+",dave,")
}

func TestExportAffiliateUsersDisabled(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ExportAffiliateUsers(context.Background(), addrA, services.UserFilter{})
	assert.ErrorIs(t, err, services.ErrExportDisabled)
}

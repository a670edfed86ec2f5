package contact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeAttribution(t *testing.T) {
	attr := SanitizeAttribution(map[string]string{
		"utm_source":   "facebook",
		"gclid":        "abc",
		"custom_param": "hello",
		"empty":        "",
	})
	require.NotNil(t, attr)
	assert.Equal(t, "facebook", attr.UTMSource)
	assert.Equal(t, "abc", attr.GClid)
	assert.Equal(t, "hello", attr.Extra["custom_param"])
	_, ok := attr.Extra["empty"]
	assert.False(t, ok)
}

func TestSanitizeAttributionCaps(t *testing.T) {
	attr := SanitizeAttribution(map[string]string{
		"utm_campaign": strings.Repeat("a", 900),
		"unknown_key":  strings.Repeat("b", 900),
	})
	require.NotNil(t, attr)
	assert.Len(t, attr.UTMCampaign, 500)
	assert.Len(t, attr.Extra["unknown_key"], 200)
}

func TestSanitizeAttributionEmpty(t *testing.T) {
	assert.Nil(t, SanitizeAttribution(nil))
	assert.Nil(t, SanitizeAttribution(map[string]string{}))
	assert.Nil(t, SanitizeAttribution(map[string]string{"utm_source": ""}))
}

func TestFlattenCanonicalNames(t *testing.T) {
	c := &Contact{
		ContactID: "c-1",
		Email:     "a@x.com",
		Attribution: &Attribution{
			UTMSource:        "facebook",
			FBAdSetID:        "adset-9",
			GoogleCampaignID: "camp-7",
		},
	}
	attrs := c.Flatten()
	assert.Equal(t, "adset-9", attrs["adset_id"])
	assert.Equal(t, "camp-7", attrs["campaign_id"])
	assert.Equal(t, "facebook", attrs["utm_source"])
	_, ok := attrs["fb_ad_set_id"]
	assert.False(t, ok)
	_, ok = attrs["phone"]
	assert.False(t, ok, "empty values stay out of the flattened view")
}

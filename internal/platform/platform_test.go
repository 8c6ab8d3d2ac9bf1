package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVendor(t *testing.T) {
	for input, want := range map[string]Vendor{
		"amlogic":  VendorAmlogic,
		"AMLOGIC":  VendorAmlogic,
		"Realtek":  VendorRealtek,
		"broadcom": VendorBroadcom,
	} {
		got, err := ParseVendor(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseVendor("mediatek")
	assert.Error(t, err)
}

func TestProfileCapabilities(t *testing.T) {
	aml := ProfileFor(VendorAmlogic)
	assert.True(t, aml.SupportsBandwidth)
	assert.True(t, aml.SupportsGPU)
	assert.False(t, aml.SupportsBMEM)
	assert.Equal(t, 15, aml.BuddyInfoColumns)
	assert.Equal(t, "codec_mm_cma", aml.CmaNames["cma-2"])

	rtk := ProfileFor(VendorRealtek)
	assert.False(t, rtk.SupportsBandwidth)
	assert.Equal(t, 17, rtk.BuddyInfoColumns)
	assert.Len(t, rtk.CmaNames, 9)

	brcm := ProfileFor(VendorBroadcom)
	assert.True(t, brcm.SupportsBMEM)
	assert.Equal(t, 15, brcm.BuddyInfoColumns)
	assert.Contains(t, brcm.CmaNames, "cma-WiFi@4C0000")

	assert.Positive(t, aml.PageSize)
	assert.NotEmpty(t, aml.Paths.CmaDir)
}

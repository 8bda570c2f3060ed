package fastboot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCommands(t *testing.T) {
	assert.Equal(t, "getvar:product", FormatGetVar("product"))
	assert.Equal(t, "download:00001000", FormatDownload(0x1000))
	assert.Equal(t, "flash:boot", FormatFlash("boot"))
	assert.Equal(t, "erase:cache", FormatErase("cache"))
	assert.Equal(t, "reboot", CommandReboot)
	assert.Equal(t, "reboot-bootloader", CommandRebootBootloader)
}

func TestParseResponseVariants(t *testing.T) {
	cases := []struct {
		in   string
		kind ResponseKind
	}{
		{"INFOhello", ResponseInfo},
		{"TEXTsome log line", ResponseText},
		{"DATA00001000", ResponseData},
		{"OKAYvalue", ResponseOkay},
		{"FAILreason", ResponseFail},
	}
	for _, tc := range cases {
		resp, err := ParseResponse([]byte(tc.in))
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.kind, resp.Kind)
	}
}

func TestParseResponseTrimsTrailingWhitespace(t *testing.T) {
	resp, err := ParseResponse([]byte("OKAYvalue\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "value", resp.Value)
}

func TestParseResponseDataPayloadIsHex(t *testing.T) {
	resp, err := ParseResponse([]byte("DATA00001000"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), resp.DataLen)
}

func TestParseResponseRejectsNonHexData(t *testing.T) {
	_, err := ParseResponse([]byte("DATAxyz"))
	require.Error(t, err)
	var violation *ProtocolViolationError
	assert.ErrorAs(t, err, &violation)
}

func TestParseResponseRejectsUnknownPrefix(t *testing.T) {
	_, err := ParseResponse([]byte("NOPEwhat"))
	require.Error(t, err)
	var violation *ProtocolViolationError
	assert.ErrorAs(t, err, &violation)
}

func TestParseResponseRejectsShortInput(t *testing.T) {
	_, err := ParseResponse([]byte("OK"))
	require.Error(t, err)
	var violation *ProtocolViolationError
	assert.ErrorAs(t, err, &violation)
}

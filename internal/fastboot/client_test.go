package fastboot

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(transport *fakeTransport) *Client {
	logger, _ := test.NewNullLogger()
	c := NewClient(transport)
	c.SetLogger(logger)
	return c
}

// TestGetVarAcrossMultipleTransfers mirrors E4: INFO, INFO, OKAY delivered
// as three separate bulk-in transfers.
func TestGetVarAcrossMultipleTransfers(t *testing.T) {
	transport := newFakeTransport(64, 512, "INFOhello", "INFOworld", "OKAYvalue")
	c := newTestClient(transport)

	got, err := c.GetVar("x")
	require.NoError(t, err)
	assert.Equal(t, "value", got)
	assert.Equal(t, []string{"getvar:x"}, transport.commandWrites())
}

func TestGetVarPropagatesFastbootFailed(t *testing.T) {
	transport := newFakeTransport(64, 512, "FAILno such variable")
	c := newTestClient(transport)

	_, err := c.GetVar("bogus")
	require.Error(t, err)
	var failed *FastbootFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "no such variable", failed.Reason)
}

func TestGetVarRejectsDataAsUnexpected(t *testing.T) {
	transport := newFakeTransport(64, 512, "DATA00000010")
	c := newTestClient(transport)

	_, err := c.GetVar("x")
	require.ErrorIs(t, err, ErrUnexpectedReply)
}

func TestGetAllVarsParsesKeyValuePairsAndSkipsMalformed(t *testing.T) {
	transport := newFakeTransport(64, 512,
		"INFOproduct: walleye",
		"INFOthis line has no colon wait yes: it does: actually",
		"INFOmalformed line without colon",
		"OKAY",
	)
	c := newTestClient(transport)

	vars, err := c.GetAllVars()
	require.NoError(t, err)
	assert.Equal(t, "walleye", vars["product"])
	assert.Equal(t, "actually", vars["this line has no colon wait yes: it does"])
	_, hasMalformed := vars["malformed line without colon"]
	assert.False(t, hasMalformed)
	assert.Equal(t, []string{"getvar:all"}, transport.commandWrites())
}

func TestFlashEraseRebootWrappers(t *testing.T) {
	transport := newFakeTransport(64, 512, "OKAY", "OKAY", "OKAY", "OKAY")
	c := newTestClient(transport)

	require.NoError(t, c.Flash("boot"))
	require.NoError(t, c.Erase("cache"))
	require.NoError(t, c.Reboot())
	require.NoError(t, c.RebootBootloader())

	assert.Equal(t, []string{"flash:boot", "erase:cache", "reboot", "reboot-bootloader"}, transport.commandWrites())
}

func TestDownloadReturnsStreamerOnData(t *testing.T) {
	transport := newFakeTransport(512, 512, "DATA00001000")
	c := newTestClient(transport)

	streamer, err := c.Download(0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), streamer.Size())
	assert.Equal(t, uint32(0x1000), streamer.Left())
	assert.Equal(t, []string{"download:00001000"}, transport.commandWrites())
}

func TestDownloadPropagatesFastbootFailed(t *testing.T) {
	transport := newFakeTransport(512, 512, "FAILnot enough space")
	c := newTestClient(transport)

	_, err := c.Download(0x1000)
	require.Error(t, err)
	var failed *FastbootFailedError
	require.ErrorAs(t, err, &failed)
}

package fastboot

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Client is a fastboot peer bound to a single USB transport. It is a
// serial command/response peer: concurrent commands on the same Client are
// undefined, and a Download streamer borrows it exclusively until Finish.
type Client struct {
	transport Transport
	log       logrus.FieldLogger
}

// NewClient wraps a Transport in a Client using the standard logger. Tests
// substitute a fake Transport; production callers go through Open.
func NewClient(t Transport) *Client {
	return &Client{transport: t, log: logrus.StandardLogger()}
}

// SetLogger replaces the Client's logger, letting callers attach
// device-scoped fields (see internal/cmd).
func (c *Client) SetLogger(log logrus.FieldLogger) { c.log = log }

// Close releases the underlying USB interface.
func (c *Client) Close() error { return c.transport.Close() }

func (c *Client) sendCommand(cmd string) error {
	c.log.WithField("command", cmd).Trace("fastboot: sending command")
	return c.transport.BulkOut([]byte(cmd))
}

func (c *Client) readResponse() (Response, error) {
	b, err := c.transport.BulkIn(c.transport.MaxInPacketSize())
	if err != nil {
		return Response{}, err
	}
	return ParseResponse(b)
}

// handleResponses reads responses until a terminal variant (OKAY or FAIL),
// logging INFO/TEXT along the way, per spec.md §4.5's execute contract.
func (c *Client) handleResponses() (string, error) {
	for {
		resp, err := c.readResponse()
		if err != nil {
			return "", err
		}
		switch resp.Kind {
		case ResponseInfo, ResponseText:
			c.log.WithField("kind", resp.Kind.String()).Debug(resp.Value)
		case ResponseData:
			return "", ErrUnexpectedReply
		case ResponseOkay:
			return resp.Value, nil
		case ResponseFail:
			return "", &FastbootFailedError{Reason: resp.Value}
		default:
			return "", &ProtocolViolationError{Reason: "unhandled response kind"}
		}
	}
}

func (c *Client) execute(cmd string) (string, error) {
	if err := c.sendCommand(cmd); err != nil {
		return "", err
	}
	return c.handleResponses()
}

// GetVar issues getvar:<name> and returns the device's OKAY payload.
func (c *Client) GetVar(name string) (string, error) {
	return c.execute(FormatGetVar(name))
}

// GetAllVars issues getvar:all and interprets each INFO line as a
// "key:value" pair, trimmed on both sides and split on the last colon.
// Malformed lines are logged and skipped rather than failing the call.
func (c *Client) GetAllVars() (map[string]string, error) {
	if err := c.sendCommand(FormatGetVar("all")); err != nil {
		return nil, err
	}

	vars := make(map[string]string)
	for {
		resp, err := c.readResponse()
		if err != nil {
			return nil, err
		}
		switch resp.Kind {
		case ResponseInfo:
			key, value, ok := splitLastColon(resp.Value)
			if !ok {
				c.log.WithField("line", resp.Value).Warn("fastboot: malformed getvar:all line, skipping")
				continue
			}
			vars[key] = value
		case ResponseText:
			c.log.WithField("text", resp.Value).Debug("fastboot: text during getvar:all")
		case ResponseData:
			return nil, ErrUnexpectedReply
		case ResponseOkay:
			return vars, nil
		case ResponseFail:
			return nil, &FastbootFailedError{Reason: resp.Value}
		default:
			return nil, &ProtocolViolationError{Reason: "unhandled response kind"}
		}
	}
}

func splitLastColon(s string) (key, value string, ok bool) {
	i := strings.LastIndex(s, ":")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
}

// Download negotiates a download of size bytes and returns a streamer bound
// exclusively to this Client until Finish is called.
func (c *Client) Download(size uint32) (*DownloadStreamer, error) {
	if err := c.sendCommand(FormatDownload(size)); err != nil {
		return nil, err
	}

	for {
		resp, err := c.readResponse()
		if err != nil {
			return nil, err
		}
		switch resp.Kind {
		case ResponseInfo, ResponseText:
			c.log.WithField("kind", resp.Kind.String()).Debug(resp.Value)
		case ResponseData:
			return newDownloadStreamer(c, resp.DataLen), nil
		case ResponseOkay:
			return nil, ErrUnexpectedReply
		case ResponseFail:
			return nil, &FastbootFailedError{Reason: resp.Value}
		default:
			return nil, &ProtocolViolationError{Reason: "unhandled response kind"}
		}
	}
}

// Flash flashes previously downloaded data to the named partition.
func (c *Client) Flash(partition string) error {
	_, err := c.execute(FormatFlash(partition))
	return err
}

// Erase erases the named partition.
func (c *Client) Erase(partition string) error {
	_, err := c.execute(FormatErase(partition))
	return err
}

// Reboot reboots the device into its normal boot mode.
func (c *Client) Reboot() error {
	_, err := c.execute(CommandReboot)
	return err
}

// RebootBootloader reboots the device back into the bootloader.
func (c *Client) RebootBootloader() error {
	_, err := c.execute(CommandRebootBootloader)
	return err
}

package iso7816

import (
	"fmt"
)

// The Client is the reader side of the exchange. It hides the two T=0
// transport behaviours that leak into the application layer:
//
//  1. "61 XX": XX bytes are waiting. The client sends GET RESPONSE with Le = XX.
//  2. "6C XX": wrong Le. The client re-sends the original command with Le = XX.
//
// Send returns the whole Trace so callers can report every exchange.

// maxChainDepth bounds automatic 61XX/6CXX follow-ups so a misbehaving card
// cannot keep the client looping.
const maxChainDepth = 8

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// TransmitterFunc adapts an in-process frame handler (such as an emulated
// card) to the Transmitter interface.
type TransmitterFunc func(cmd []byte) []byte

// Transmit calls f.
func (f TransmitterFunc) Transmit(cmd []byte) ([]byte, error) {
	return f(cmd), nil
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter
}

// NewClient creates a new Client instance.
func NewClient(card Transmitter) *Client {
	return &Client{Card: card}
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	return c.send(cmd, 0)
}

func (c *Client) send(cmd *CommandAPDU, depth int) (Trace, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	trace := Trace{{Command: cmd, Response: resp}}

	var next *CommandAPDU
	switch resp.Status.SW1() {
	case 0x61:
		// GET RESPONSE stays on the original logical channel.
		respCls := cmd.Class
		respCls.IsChained = false
		next = NewCommandAPDU(respCls, mustInstruction(INS_GET_RESPONSE), 0x00, 0x00, nil, shortLe(resp.Status.SW2()))
	case 0x6C:
		retry := *cmd
		retry.Ne = shortLe(resp.Status.SW2())
		next = &retry
	default:
		return trace, nil
	}

	if depth >= maxChainDepth {
		return trace, fmt.Errorf("gave up after %d chained exchanges (last status %s)", depth+1, resp.Status)
	}

	subTrace, err := c.send(next, depth+1)
	trace = append(trace, subTrace...)
	return trace, err
}

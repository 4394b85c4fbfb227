// ABOUTME: WebSocket client for the opusd decode service
// ABOUTME: Serializes request/response pairs over a single connection
package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/audioplane/opusd/pkg/protocol"
)

const dialTimeout = 10 * time.Second

// StatusError reports a non-OK status returned by the server.
type StatusError struct {
	Status protocol.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %s", e.Status)
}

// Client talks to one opusd server. All methods are safe for
// concurrent use; requests are serialized on the underlying
// connection, matching the server's one-operation-at-a-time contract.
type Client struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	hello protocol.ServerHello
}

// Dial connects to the opusd server at host:port and waits for its
// hello message.
func Dial(addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/opus"}
	return DialURL(u.String())
}

// DialURL connects to an explicit WebSocket URL. Tests use this with
// httptest servers.
func DialURL(rawURL string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", rawURL, err)
	}

	c := &Client{conn: conn}
	if err := c.readHello(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) readHello() error {
	var msg protocol.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("reading server hello: %w", err)
	}
	if msg.Type != protocol.TypeServerHello {
		return fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, msg.Type)
	}
	if err := unmarshalPayload(msg.Payload, &c.hello); err != nil {
		return fmt.Errorf("decoding server hello: %w", err)
	}
	if c.hello.Version != protocol.ProtocolVersion {
		return fmt.Errorf("protocol version mismatch: server %d, client %d",
			c.hello.Version, protocol.ProtocolVersion)
	}
	return nil
}

// Server identifies the connected server.
func (c *Client) Server() protocol.ServerHello {
	return c.hello
}

// Close closes the connection. Any decoder sessions opened on it are
// released by the server.
func (c *Client) Close() error {
	return c.conn.Close()
}

// WorkBufferSize asks how large a work buffer a decoder with the given
// configuration needs.
func (c *Client) WorkBufferSize(sampleRate, channelCount uint32) (uint32, error) {
	var res protocol.WorkBufferSizeResult
	err := c.roundTripJSON(protocol.TypeWorkBufferSize, protocol.WorkBufferSizeRequest{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
	}, protocol.TypeWorkBufferSizeResult, &res)
	if err != nil {
		return 0, err
	}
	if res.Status != protocol.StatusOK {
		return 0, &StatusError{Status: res.Status}
	}
	return res.WorkerBufferSize, nil
}

// RemoteDecoder is a decoder session held open on the server. It is
// valid until the client connection closes.
type RemoteDecoder struct {
	client       *Client
	id           uuid.UUID
	channelCount uint32
}

// OpenDecoder opens a decoder session with the given configuration and
// work buffer size.
func (c *Client) OpenDecoder(sampleRate, channelCount, bufferSize uint32) (*RemoteDecoder, error) {
	var res protocol.OpenDecoderResult
	err := c.roundTripJSON(protocol.TypeOpenDecoder, protocol.OpenDecoderRequest{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		BufferSize:   bufferSize,
	}, protocol.TypeOpenDecoderResult, &res)
	if err != nil {
		return nil, err
	}
	if res.Status != protocol.StatusOK {
		return nil, &StatusError{Status: res.Status}
	}
	id, err := uuid.Parse(res.SessionID)
	if err != nil {
		return nil, fmt.Errorf("parsing session id: %w", err)
	}
	return &RemoteDecoder{client: c, id: id, channelCount: channelCount}, nil
}

// ID is the server-assigned session identifier.
func (d *RemoteDecoder) ID() string {
	return d.id.String()
}

// DecodeResult reports one decoded frame.
type DecodeResult struct {
	Consumed    uint32
	SampleCount uint32
	PCM         []byte
}

// TimedDecodeResult additionally reports the decode time in
// milliseconds.
type TimedDecodeResult struct {
	DecodeResult
	ElapsedMS uint64
}

// DecodeInterleaved decodes the first framed packet in input into
// interleaved 16-bit PCM. outputCapacity is the byte size of the
// output buffer the server sizes the decode against.
func (d *RemoteDecoder) DecodeInterleaved(input []byte, outputCapacity uint32) (DecodeResult, error) {
	res, err := d.decode(protocol.CmdDecodeInterleaved, input, outputCapacity)
	if err != nil {
		return DecodeResult{}, err
	}
	return res.DecodeResult, nil
}

// DecodeInterleavedWithPerformance decodes like DecodeInterleaved and
// reports the time spent in the codec.
func (d *RemoteDecoder) DecodeInterleavedWithPerformance(input []byte, outputCapacity uint32) (TimedDecodeResult, error) {
	return d.decode(protocol.CmdDecodeInterleavedWithPerformance, input, outputCapacity)
}

func (d *RemoteDecoder) decode(command uint8, input []byte, outputCapacity uint32) (TimedDecodeResult, error) {
	req := protocol.DecodeRequest{
		Command:        command,
		SessionID:      d.id,
		OutputCapacity: outputCapacity,
		Input:          input,
	}

	d.client.mu.Lock()
	defer d.client.mu.Unlock()

	if err := d.client.conn.WriteMessage(websocket.BinaryMessage, req.Encode()); err != nil {
		return TimedDecodeResult{}, fmt.Errorf("writing decode request: %w", err)
	}

	msgType, data, err := d.client.conn.ReadMessage()
	if err != nil {
		return TimedDecodeResult{}, fmt.Errorf("reading decode response: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		return TimedDecodeResult{}, fmt.Errorf("expected binary response, got message type %d", msgType)
	}

	res, err := protocol.ParseDecodeResponse(data)
	if err != nil {
		return TimedDecodeResult{}, fmt.Errorf("parsing decode response: %w", err)
	}
	if res.Status != protocol.StatusOK {
		return TimedDecodeResult{}, &StatusError{Status: res.Status}
	}
	return TimedDecodeResult{
		DecodeResult: DecodeResult{
			Consumed:    res.Consumed,
			SampleCount: res.SampleCount,
			PCM:         res.PCM,
		},
		ElapsedMS: res.ElapsedMS,
	}, nil
}

// roundTripJSON sends one control message and decodes the typed reply.
func (c *Client) roundTripJSON(reqType string, payload interface{}, wantType string, dst interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.WriteJSON(protocol.Message{Type: reqType, Payload: payload}); err != nil {
		return fmt.Errorf("writing %s: %w", reqType, err)
	}

	var msg protocol.Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("reading %s reply: %w", reqType, err)
	}
	if msg.Type != wantType {
		return fmt.Errorf("expected %s, got %s", wantType, msg.Type)
	}
	return unmarshalPayload(msg.Payload, dst)
}

func unmarshalPayload(payload interface{}, dst interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

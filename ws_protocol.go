package forecastplot

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Binary protocol of the /ws2 endpoint. Every message is an 8 byte envelope
// followed by the payload:
//
//	version(1) reserved(2) type(1) payload length(4, little endian)
//
// A published figure is sent as one FIGURE message followed by one TRACE
// message per trace, bottom to top. STREAM_END is sent when the server
// shuts down.
const (
	ProtocolVersion byte = 1

	MessageTypeTrace     byte = 0x01
	MessageTypeFigure    byte = 0x02
	MessageTypeStreamEnd byte = 0x03

	EnvelopeHeaderSize = 8

	traceHeaderSize = 12
)

type EnvelopeHeader struct {
	Version  byte
	Reserved [2]byte
	Type     byte
	Length   uint32
}

// TraceMessage carries one trace of a figure. X values of timed axes are unix
// seconds.
type TraceMessage struct {
	FigureID uint32
	SeriesID uint32
	Length   uint32
	X        []float64
	Y        []float64
}

type StreamEndMessage struct {
	Error bool
	Msg   string
}

type WSMessage struct {
	Header  EnvelopeHeader
	Payload interface{} // One of: TraceMessage, FigureMetadata, StreamEndMessage
}

// NewTraceMessage packs trace seriesID of a figure.
func NewTraceMessage(figureID uint32, seriesID uint32, trace Trace) TraceMessage {
	msg := TraceMessage{
		FigureID: figureID,
		SeriesID: seriesID,
		Length:   uint32(len(trace.Y)),
		X:        make([]float64, len(trace.Y)),
		Y:        trace.Y,
	}
	for i := range trace.Y {
		msg.X[i] = trace.X.Float(i)
	}
	return msg
}

func EncodeEnvelopeHeader(env EnvelopeHeader) []byte {
	buf := make([]byte, EnvelopeHeaderSize)
	buf[0] = env.Version
	buf[1] = env.Reserved[0]
	buf[2] = env.Reserved[1]
	buf[3] = env.Type
	binary.LittleEndian.PutUint32(buf[4:8], env.Length)
	return buf
}

func DecodeEnvelopeHeader(buf []byte) (EnvelopeHeader, error) {
	if len(buf) < EnvelopeHeaderSize {
		return EnvelopeHeader{}, fmt.Errorf("buffer too short: expected at least %d bytes, got %d", EnvelopeHeaderSize, len(buf))
	}

	env := EnvelopeHeader{
		Version: buf[0],
		Type:    buf[3],
		Length:  binary.LittleEndian.Uint32(buf[4:8]),
	}
	env.Reserved[0] = buf[1]
	env.Reserved[1] = buf[2]

	return env, nil
}

func EncodeTraceMessage(msg TraceMessage) ([]byte, error) {
	if len(msg.X) != len(msg.Y) {
		return nil, fmt.Errorf("X and Y arrays must have same length: X=%d, Y=%d", len(msg.X), len(msg.Y))
	}
	if uint32(len(msg.X)) != msg.Length {
		return nil, fmt.Errorf("Length field (%d) doesn't match array length (%d)", msg.Length, len(msg.X))
	}

	buf := make([]byte, traceHeaderSize+int(msg.Length)*8*2)
	binary.LittleEndian.PutUint32(buf[0:4], msg.FigureID)
	binary.LittleEndian.PutUint32(buf[4:8], msg.SeriesID)
	binary.LittleEndian.PutUint32(buf[8:12], msg.Length)

	offset := traceHeaderSize
	for _, values := range [][]float64{msg.X, msg.Y} {
		for _, v := range values {
			binary.LittleEndian.PutUint64(buf[offset:offset+8], math.Float64bits(v))
			offset += 8
		}
	}

	return buf, nil
}

func DecodeTraceMessage(buf []byte) (TraceMessage, error) {
	if len(buf) < traceHeaderSize {
		return TraceMessage{}, fmt.Errorf("buffer too short for TRACE message: expected at least %d bytes, got %d", traceHeaderSize, len(buf))
	}

	msg := TraceMessage{
		FigureID: binary.LittleEndian.Uint32(buf[0:4]),
		SeriesID: binary.LittleEndian.Uint32(buf[4:8]),
		Length:   binary.LittleEndian.Uint32(buf[8:12]),
	}

	expectedSize := uint64(traceHeaderSize) + uint64(msg.Length)*8*2
	if uint64(len(buf)) != expectedSize {
		return TraceMessage{}, fmt.Errorf("buffer size mismatch: expected %d bytes for %d points, got %d", expectedSize, msg.Length, len(buf))
	}

	readFloats := func(offset int) []float64 {
		values := make([]float64, msg.Length)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[offset : offset+8]))
			offset += 8
		}
		return values
	}
	msg.X = readFloats(traceHeaderSize)
	msg.Y = readFloats(traceHeaderSize + int(msg.Length)*8)

	return msg, nil
}

// encodeJSONPayload prefixes the JSON encoding of v with its length.
func encodeJSONPayload(v interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 4+len(jsonData))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(jsonData)))
	copy(buf[4:], jsonData)
	return buf, nil
}

func decodeJSONPayload(buf []byte, v interface{}) error {
	if len(buf) < 4 {
		return fmt.Errorf("buffer too short for JSON payload: expected at least 4 bytes, got %d", len(buf))
	}

	jsonLength := binary.LittleEndian.Uint32(buf[0:4])
	if uint64(len(buf)) != 4+uint64(jsonLength) {
		return fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", 4+uint64(jsonLength), len(buf))
	}

	return json.Unmarshal(buf[4:], v)
}

func EncodeFigureMessage(meta FigureMetadata) ([]byte, error) {
	buf, err := encodeJSONPayload(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal figure metadata: %w", err)
	}
	return buf, nil
}

func DecodeFigureMessage(buf []byte) (FigureMetadata, error) {
	var meta FigureMetadata
	if err := decodeJSONPayload(buf, &meta); err != nil {
		return FigureMetadata{}, fmt.Errorf("FIGURE message: %w", err)
	}
	return meta, nil
}

func EncodeStreamEndMessage(msg StreamEndMessage) ([]byte, error) {
	buf, err := encodeJSONPayload(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stream end message: %w", err)
	}
	return buf, nil
}

func DecodeStreamEndMessage(buf []byte) (StreamEndMessage, error) {
	var msg StreamEndMessage
	if err := decodeJSONPayload(buf, &msg); err != nil {
		return StreamEndMessage{}, fmt.Errorf("STREAM_END message: %w", err)
	}
	return msg, nil
}

// EncodeWSMessage encodes envelope and payload. The header length is set
// from the encoded payload.
func EncodeWSMessage(msg WSMessage) ([]byte, error) {
	var payload []byte
	var err error

	switch msg.Header.Type {
	case MessageTypeTrace:
		trace, ok := msg.Payload.(TraceMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected TraceMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeTraceMessage(trace)
	case MessageTypeFigure:
		meta, ok := msg.Payload.(FigureMetadata)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected FigureMetadata for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeFigureMessage(meta)
	case MessageTypeStreamEnd:
		streamEnd, ok := msg.Payload.(StreamEndMessage)
		if !ok {
			return nil, fmt.Errorf("payload type mismatch: expected StreamEndMessage for type 0x%02x, got %T", msg.Header.Type, msg.Payload)
		}
		payload, err = EncodeStreamEndMessage(streamEnd)
	default:
		return nil, fmt.Errorf("unknown message type: 0x%02x", msg.Header.Type)
	}
	if err != nil {
		return nil, err
	}

	msg.Header.Length = uint32(len(payload))
	return append(EncodeEnvelopeHeader(msg.Header), payload...), nil
}

func DecodeWSMessage(buf []byte) (WSMessage, error) {
	env, err := DecodeEnvelopeHeader(buf)
	if err != nil {
		return WSMessage{}, err
	}

	expectedSize := uint64(EnvelopeHeaderSize) + uint64(env.Length)
	if uint64(len(buf)) < expectedSize {
		return WSMessage{}, fmt.Errorf("buffer too short: expected %d bytes (header + payload), got %d", expectedSize, len(buf))
	}

	payloadBytes := buf[EnvelopeHeaderSize:expectedSize]

	var payload interface{}
	switch env.Type {
	case MessageTypeTrace:
		payload, err = DecodeTraceMessage(payloadBytes)
	case MessageTypeFigure:
		payload, err = DecodeFigureMessage(payloadBytes)
	case MessageTypeStreamEnd:
		payload, err = DecodeStreamEndMessage(payloadBytes)
	default:
		return WSMessage{}, fmt.Errorf("unknown message type: 0x%02x", env.Type)
	}
	if err != nil {
		return WSMessage{}, err
	}

	return WSMessage{
		Header:  env,
		Payload: payload,
	}, nil
}

// encodeFigureMessages produces the /ws2 sequence for one figure.
func encodeFigureMessages(meta FigureMetadata, fig *Figure) ([][]byte, error) {
	messages := make([][]byte, 0, len(fig.Traces)+1)

	header := EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeFigure}
	msg, err := EncodeWSMessage(WSMessage{Header: header, Payload: meta})
	if err != nil {
		return nil, err
	}
	messages = append(messages, msg)

	for i, trace := range fig.Traces {
		header := EnvelopeHeader{Version: ProtocolVersion, Type: MessageTypeTrace}
		msg, err := EncodeWSMessage(WSMessage{Header: header, Payload: NewTraceMessage(meta.ID, uint32(i), trace)})
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

package speech

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// 火山引擎语音 WebSocket 二进制帧：4 字节头 + 可选序号/事件 + 载荷长度 + 载荷。
const protocolVersion = 0b0001

const (
	msgFullClientRequest       byte = 0b0001
	msgAudioOnlyRequest        byte = 0b0010
	msgFullServerResponse      byte = 0b1001
	msgAudioOnlyServerResponse byte = 0b1011
	msgError                   byte = 0b1111
)

const (
	flagNoSequence       byte = 0b0000
	flagPositiveSequence byte = 0b0001
	flagLastNoSequence   byte = 0b0010
	flagNegativeSequence byte = 0b0011
	flagWithEvent        byte = 0b0100
)

const (
	serialNone byte = 0b0000
	serialJSON byte = 0b0001
)

const (
	compressNone byte = 0b0000
	compressGzip byte = 0b0001
)

// 服务端事件
const (
	eventStartConnection    int32 = 1
	eventFinishConnection   int32 = 2
	eventConnectionStarted  int32 = 50
	eventConnectionFailed   int32 = 51
	eventConnectionFinished int32 = 52
	eventSessionStarted     int32 = 150
	eventSessionFinished    int32 = 152
	eventSessionFailed      int32 = 153
)

type frame struct {
	msgType     byte
	flags       byte
	serial      byte
	compression byte
	sequence    int32
	event       int32
	sessionID   string
	connectID   string
	errCode     uint32
	payload     []byte
}

func (f frame) hasSequence() bool {
	switch f.flags & 0b0011 {
	case flagPositiveSequence, flagNegativeSequence:
		return true
	}
	return false
}

func (f frame) hasEvent() bool {
	return f.flags&flagWithEvent == flagWithEvent
}

// isLast 判断是否为最后一包。
func (f frame) isLast() bool {
	switch f.flags & 0b0011 {
	case flagLastNoSequence, flagNegativeSequence:
		return true
	}
	return false
}

// body 返回解压后的载荷。
func (f frame) body() ([]byte, error) {
	switch f.compression {
	case compressNone:
		return f.payload, nil
	case compressGzip:
		return gunzip(f.payload)
	default:
		return nil, fmt.Errorf("unsupported compression method: %d", f.compression)
	}
}

func encodeFrame(f frame) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 16+len(f.payload)))
	buf.Write([]byte{
		protocolVersion<<4 | 0b0001,
		f.msgType<<4 | f.flags,
		f.serial<<4 | f.compression,
		0x00,
	})

	if f.hasSequence() {
		writeUint32(buf, uint32(f.sequence))
	}
	if f.hasEvent() {
		writeUint32(buf, uint32(f.event))
		if !isConnectionEvent(f.event) {
			writeString(buf, f.sessionID)
		}
		if carriesConnectID(f.event) {
			writeString(buf, f.connectID)
		}
	}
	if f.msgType == msgError {
		writeUint32(buf, f.errCode)
	}

	writeUint32(buf, uint32(len(f.payload)))
	buf.Write(f.payload)
	return buf.Bytes()
}

func decodeFrame(data []byte) (frame, error) {
	r := bytes.NewReader(data)

	head := make([]byte, 4)
	if _, err := io.ReadFull(r, head); err != nil {
		return frame{}, fmt.Errorf("failed to read header: %w", err)
	}
	if version := head[0] >> 4; version != protocolVersion {
		return frame{}, fmt.Errorf("unsupported protocol version: %d", version)
	}

	f := frame{
		msgType:     head[1] >> 4,
		flags:       head[1] & 0x0F,
		serial:      head[2] >> 4,
		compression: head[2] & 0x0F,
	}

	if extra := int(head[0]&0x0F)*4 - 4; extra > 0 {
		if _, err := r.Seek(int64(extra), io.SeekCurrent); err != nil {
			return frame{}, fmt.Errorf("failed to skip extended header: %w", err)
		}
	}

	if f.hasSequence() {
		seq, err := readUint32(r)
		if err != nil {
			return frame{}, fmt.Errorf("failed to read sequence: %w", err)
		}
		f.sequence = int32(seq)
	}

	if f.hasEvent() {
		event, err := readUint32(r)
		if err != nil {
			return frame{}, fmt.Errorf("failed to read event type: %w", err)
		}
		f.event = int32(event)

		if !isConnectionEvent(f.event) {
			if f.sessionID, err = readString(r); err != nil {
				return frame{}, fmt.Errorf("failed to read session id: %w", err)
			}
		}
		if carriesConnectID(f.event) {
			if f.connectID, err = readString(r); err != nil {
				return frame{}, fmt.Errorf("failed to read connect id: %w", err)
			}
		}
	}

	if f.msgType == msgError {
		code, err := readUint32(r)
		if err != nil {
			return frame{}, fmt.Errorf("failed to read error code: %w", err)
		}
		f.errCode = code
	}

	size, err := readUint32(r)
	if err != nil {
		return frame{}, fmt.Errorf("failed to read payload size: %w", err)
	}
	if size > 0 {
		f.payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.payload); err != nil {
			return frame{}, fmt.Errorf("failed to read payload (expected %d bytes): %w", size, err)
		}
	}

	return f, nil
}

// clientRequest 构造携带 JSON 参数的首包。
func clientRequest(payload []byte, gzipped bool) (frame, error) {
	f := frame{msgType: msgFullClientRequest, flags: flagNoSequence, serial: serialJSON, payload: payload}
	if gzipped {
		compressed, err := gzipBytes(payload)
		if err != nil {
			return frame{}, err
		}
		f.compression = compressGzip
		f.payload = compressed
	}
	return f, nil
}

// audioRequest 构造音频分包，最后一包序号取负。
func audioRequest(chunk []byte, sequence int32, last bool) (frame, error) {
	compressed, err := gzipBytes(chunk)
	if err != nil {
		return frame{}, err
	}

	flags := flagPositiveSequence
	if last {
		flags = flagNegativeSequence
		sequence = -sequence
	}
	return frame{
		msgType:     msgAudioOnlyRequest,
		flags:       flags,
		serial:      serialNone,
		compression: compressGzip,
		sequence:    sequence,
		payload:     compressed,
	}, nil
}

func isConnectionEvent(event int32) bool {
	switch event {
	case eventStartConnection, eventFinishConnection,
		eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

func carriesConnectID(event int32) bool {
	switch event {
	case eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readString(r io.Reader) (string, error) {
	size, err := readUint32(r)
	if err != nil || size == 0 {
		return "", err
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("gzip write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close failed: %w", err)
	}
	return buf.Bytes(), nil
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader creation failed: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read failed: %w", err)
	}
	return out, nil
}

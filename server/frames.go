package server

import (
	"github.com/gorilla/websocket"
)

// FrameKind classifies an inbound frame
type FrameKind int

const (
	FramePing FrameKind = iota
	FrameText
	FrameBinary
	FrameOther // pong or an opcode the session has no use for
	FrameError // the transport failed to deliver a frame
)

func (k FrameKind) String() string {
	switch k {
	case FramePing:
		return "ping"
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FrameOther:
		return "other"
	case FrameError:
		return "error"
	default:
		return "unknown"
	}
}

// Frame is one inbound event in arrival order
type Frame struct {
	Kind FrameKind
	Data []byte
	Err  error
}

// outbound is a frame the session writes in reply
type outbound struct {
	messageType int
	data        []byte
}

// frameFromMessage maps a gorilla data message to a Frame
func frameFromMessage(messageType int, data []byte) Frame {
	switch messageType {
	case websocket.TextMessage:
		return Frame{Kind: FrameText, Data: data}
	case websocket.BinaryMessage:
		return Frame{Kind: FrameBinary, Data: data}
	default:
		return Frame{Kind: FrameOther, Data: data}
	}
}

// reply decides the response to f. The second result is false when the
// frame gets no reply.
func reply(f Frame) (outbound, bool) {
	switch f.Kind {
	case FramePing:
		return outbound{messageType: websocket.PongMessage, data: f.Data}, true
	case FrameText:
		echo := make([]byte, 0, len(EchoPrefix)+len(f.Data))
		echo = append(echo, EchoPrefix...)
		echo = append(echo, f.Data...)
		return outbound{messageType: websocket.TextMessage, data: echo}, true
	default:
		return outbound{}, false
	}
}

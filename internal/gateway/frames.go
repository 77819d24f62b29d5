package gateway

import (
	"encoding/json"

	"github.com/coder/websocket"
)

// StatusSuperseded is the close code sent to a connection that has been
// replaced by a newer one from the same device.
const StatusSuperseded websocket.StatusCode = 4000

// frame is the JSON envelope of every outbound text message. Fields are
// omitted when empty so each frame type carries only what it declares.
type frame struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	IsUser    *bool          `json:"is_user,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// controlFrame is the JSON shape of every inbound text message.
type controlFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Mode string `json:"mode,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

func pongFrame() frame {
	return frame{Type: "pong"}
}

func systemLogFrame(text string) frame {
	return frame{Type: "system_log", Text: text}
}

func errorFrame(text string) frame {
	return frame{Type: "error", Text: text}
}

func statusFrame(text string) frame {
	return frame{Type: "status", Text: text}
}

func sessionResetFrame(sessionID string) frame {
	return frame{
		Type:      "session_reset",
		SessionID: sessionID,
		Text:      "Session ID was invalid; a new session has been created.",
	}
}

func transcriptInterimFrame(text string) frame {
	return frame{Type: "transcript_interim", Text: text}
}

func userTranscriptFrame(text string) frame {
	return frame{Type: "transcript", Text: text, IsUser: boolPtr(true)}
}

func assistantStartFrame() frame {
	return frame{Type: "assistant_transcript_start", IsUser: boolPtr(false)}
}

func transcriptChunkFrame(text string) frame {
	return frame{Type: "transcript_chunk", Text: text}
}

func assistantTranscriptFrame(text string) frame {
	return frame{Type: "assistant_transcript", Text: text, IsUser: boolPtr(false)}
}

func metricsFrame(data map[string]any) frame {
	return frame{Type: "metrics", Data: data}
}

// encodeFrame marshals a frame for the writer. Frames are built from known
// types, so a marshal failure is a programming error; it is reported as an
// empty payload the writer skips.
func encodeFrame(f frame) []byte {
	b, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	return b
}

package wyoming

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// maxHeaderBytes bounds a single header line.
const maxHeaderBytes = 64 * 1024

type event struct {
	Type string
	Data map[string]any
}

type header struct {
	Type          string         `json:"type"`
	Data          map[string]any `json:"data,omitempty"` // inline data, older servers
	DataLength    int            `json:"data_length,omitempty"`
	PayloadLength int            `json:"payload_length,omitempty"`
}

// writeEvent sends a Wyoming event: header line, data block, payload.
func writeEvent(w io.Writer, evt event, payload []byte) error {
	h := header{Type: evt.Type, PayloadLength: len(payload)}

	var data []byte
	if len(evt.Data) > 0 {
		var err error
		if data, err = json.Marshal(evt.Data); err != nil {
			return fmt.Errorf("marshalling event data: %w", err)
		}
		h.DataLength = len(data)
	}

	line, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshalling event header: %w", err)
	}
	line = append(line, '\n')

	for _, part := range [][]byte{line, data, payload} {
		if len(part) == 0 {
			continue
		}
		if _, err := w.Write(part); err != nil {
			return err
		}
	}
	return nil
}

// readEvent reads one Wyoming event. Data sent inline in the header and data
// sent as a separate block are merged, the block taking precedence.
func readEvent(r *bufio.Reader) (*event, []byte, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, nil, fmt.Errorf("invalid wyoming header %q: %w", line, err)
	}
	if h.DataLength < 0 || h.PayloadLength < 0 {
		return nil, nil, fmt.Errorf("negative length in wyoming header %q", line)
	}

	evt := &event{Type: h.Type, Data: h.Data}
	if evt.Data == nil {
		evt.Data = map[string]any{}
	}

	if h.DataLength > 0 {
		buf := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, nil, fmt.Errorf("reading data: %w", err)
		}
		var extra map[string]any
		if err := json.Unmarshal(buf, &extra); err != nil {
			return nil, nil, fmt.Errorf("unmarshalling data: %w", err)
		}
		for k, v := range extra {
			evt.Data[k] = v
		}
	}

	var payload []byte
	if h.PayloadLength > 0 {
		payload = make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, nil, fmt.Errorf("reading payload: %w", err)
		}
	}

	return evt, payload, nil
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > maxHeaderBytes {
			return nil, fmt.Errorf("header exceeds %d bytes", maxHeaderBytes)
		}
		if !isPrefix {
			return line, nil
		}
	}
}

// serverInfo is the subset of a Wyoming "info" event narrator cares about.
type serverInfo struct {
	TTS []ttsProgram `json:"tts"`
}

type ttsProgram struct {
	Name   string      `json:"name"`
	Voices []voiceInfo `json:"voices"`
}

type voiceInfo struct {
	Name string `json:"name"`
}

func parseInfo(data map[string]any) (*serverInfo, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("re-encoding info: %w", err)
	}
	var info serverInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decoding info: %w", err)
	}
	return &info, nil
}

func (i *serverInfo) hasVoice(name string) bool {
	for _, prog := range i.TTS {
		for _, v := range prog.Voices {
			if v.Name == name {
				return true
			}
		}
	}
	return false
}

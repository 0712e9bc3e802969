// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jeranaias/atlas-tui/internal/model"
)

// maxLineSize bounds a single stream part. Tool results carrying execution
// output can be large.
const maxLineSize = 8 * 1024 * 1024

type toolCallPart struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	Args       json.RawMessage `json:"args"`
}

type toolResultPart struct {
	ToolCallID string          `json:"toolCallId"`
	Result     json.RawMessage `json:"result"`
}

type finishPart struct {
	FinishReason string `json:"finishReason"`
	Message      string `json:"message"`
}

// Decoder turns data stream lines into events for one message.
type Decoder struct {
	scanner   *bufio.Scanner
	messageID string
	logger    *slog.Logger
	done      bool
}

// NewDecoder reads parts from r and tags events with messageID. A nil
// logger uses slog.Default().
func NewDecoder(r io.Reader, messageID string, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner, messageID: messageID, logger: logger}
}

// Run decodes until the stream ends, a finish part arrives, an error part
// arrives or ctx is cancelled. emit is called for each event in order.
// Malformed parts are logged and skipped.
func (d *Decoder) Run(ctx context.Context, emit func(model.Event)) error {
	for !d.done {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return &StreamError{Err: err}
			}
			return nil
		}

		ev, err := d.decodeLine(d.scanner.Bytes())
		if errors.Is(err, ErrMalformedPart) {
			d.logger.Warn("skipping malformed stream part", "message_id", d.messageID, "error", err)
			continue
		}
		if err != nil {
			return err
		}
		if ev != nil {
			emit(ev)
		}
	}
	return nil
}

// decodeLine returns the event for one line, nil for lines carrying none.
func (d *Decoder) decodeLine(line []byte) (model.Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, nil
	}
	code, payload, ok := bytes.Cut(line, []byte{':'})
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedPart, truncate(line))
	}

	switch string(code) {
	case "0":
		var text string
		if err := json.Unmarshal(payload, &text); err != nil {
			return nil, fmt.Errorf("%w: text: %v", ErrMalformedPart, err)
		}
		return model.TextDelta{MessageID: d.messageID, Chunk: text}, nil

	case "9", "b":
		var part toolCallPart
		if err := json.Unmarshal(payload, &part); err != nil {
			return nil, fmt.Errorf("%w: tool call: %v", ErrMalformedPart, err)
		}
		return model.ToolCallStarted{
			MessageID: d.messageID,
			ToolID:    part.ToolCallID,
			Name:      part.ToolName,
			Args:      part.Args,
		}, nil

	case "a":
		var part toolResultPart
		if err := json.Unmarshal(payload, &part); err != nil {
			return nil, fmt.Errorf("%w: tool result: %v", ErrMalformedPart, err)
		}
		return model.ToolCallResult{
			MessageID: d.messageID,
			ToolID:    part.ToolCallID,
			Result:    part.Result,
		}, nil

	case "3":
		var msg string
		if err := json.Unmarshal(payload, &msg); err != nil {
			msg = string(payload)
		}
		return nil, &StreamError{Message: msg}

	case "e":
		var part finishPart
		if err := json.Unmarshal(payload, &part); err != nil {
			return nil, fmt.Errorf("%w: finish: %v", ErrMalformedPart, err)
		}
		if part.FinishReason == "error" {
			msg := part.Message
			if msg == "" {
				msg = "unknown error"
			}
			return nil, &StreamError{Message: msg}
		}
		return nil, nil

	case "d":
		d.done = true
		return nil, nil

	default:
		return nil, nil
	}
}

func truncate(b []byte) string {
	const max = 64
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

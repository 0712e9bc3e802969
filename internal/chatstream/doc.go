// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatstream talks to the chat backend's streaming endpoint.
//
// A request POSTs the conversation history as JSON; the response is the
// line-oriented data stream protocol, one "<code>:<json>" part per line:
//
//	0  text delta            "Hello"
//	9  tool call start       {"toolCallId","toolName","args"}
//	b  tool call start       (streaming variant, same payload)
//	a  tool call result      {"toolCallId","result"}
//	3  error                 "message"
//	e  step finish           {"finishReason", "message"?}
//	d  message finish        {"finishReason"}
//
// Each decoded part is emitted as a model.Event in arrival order. Unknown
// codes are skipped so newer servers stay readable.
//
// Failures never retry. Rate limiting, either HTTP 429 or an error part
// mentioning it, matches ErrRateLimited via errors.Is.
package chatstream

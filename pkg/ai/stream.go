package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// StreamReader yields content chunks of a streaming completion. Recv returns
// io.EOF after the terminal [DONE] marker or when the stream closes.
type StreamReader interface {
	Recv() (string, error)
	Close() error
}

// Stream performs a streaming chat completion and returns a reader over the
// incremental content deltas.
func (c *Client) Stream(ctx context.Context, req Request) (StreamReader, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return &sseReader{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

type sseReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (r *sseReader) Recv() (string, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return "", io.EOF
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Malformed chunks are skipped, the provider occasionally
			// interleaves keep-alive noise.
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *sseReader) Close() error {
	return r.body.Close()
}

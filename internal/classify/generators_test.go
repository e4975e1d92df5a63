package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/classifier-cli/pkg/anthropic"
)

type stubAnthropicClient struct {
	req  anthropic.MessageRequest
	resp *anthropic.MessageResponse
	err  error
}

func (s *stubAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.req = req
	return s.resp, s.err
}

func TestAnthropicGenerator_ReturnsText(t *testing.T) {
	client := &stubAnthropicClient{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: `{"choice": 1}`}},
	}}
	gen := NewAnthropicGenerator(client, "claude-haiku-4-5-20251001")

	got, err := gen.Generate(context.Background(), "pick one")
	require.NoError(t, err)
	assert.Equal(t, `{"choice": 1}`, got)

	assert.Equal(t, "claude-haiku-4-5-20251001", client.req.Model)
	assert.Equal(t, "pick one", client.req.Messages[0].Content)
	require.NotNil(t, client.req.Temperature)
	assert.Zero(t, *client.req.Temperature)
}

func TestAnthropicGenerator_EmptyContent(t *testing.T) {
	client := &stubAnthropicClient{resp: &anthropic.MessageResponse{}}
	gen := NewAnthropicGenerator(client, "claude-haiku-4-5-20251001")

	_, err := gen.Generate(context.Background(), "pick one")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text content")
}

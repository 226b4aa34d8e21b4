package assist

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	text string
	err  error
	got  *bedrockruntime.InvokeModelInput
}

func (f *fakeInvoker) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	body, _ := json.Marshal(modelResponse{
		Content: []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{{Type: "text", Text: f.text}},
	})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func TestSuggestSubjects(t *testing.T) {
	fake := &fakeInvoker{text: "1. First idea\n- Second idea\n\nThird idea\nFourth idea\nFifth idea\nSixth idea"}
	svc := &Service{client: fake, modelID: "test-model"}

	subjects, err := svc.SuggestSubjects(context.Background(), "spring launch recap")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"First idea", "Second idea", "Third idea", "Fourth idea", "Fifth idea",
	}, subjects)

	var req modelRequest
	require.NoError(t, json.Unmarshal(fake.got.Body, &req))
	assert.Equal(t, "spring launch recap", req.Messages[0].Content[0].Text)
}

func TestSuggestSubjectsEmptyResponse(t *testing.T) {
	svc := &Service{client: &fakeInvoker{text: "  \n  "}, modelID: "test-model"}
	_, err := svc.SuggestSubjects(context.Background(), "anything")
	assert.Error(t, err)
}

func TestImproveBody(t *testing.T) {
	svc := &Service{client: &fakeInvoker{text: "\n<p>Better draft.</p>\n"}, modelID: "test-model"}
	out, err := svc.ImproveBody(context.Background(), "<p>draft</p>")
	require.NoError(t, err)
	assert.Equal(t, "<p>Better draft.</p>", out)
}

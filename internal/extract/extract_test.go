package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interview-prep/internal/generate"
	"github.com/sells-group/interview-prep/internal/model"
)

const invitation = `Interview Invitation: Backend Engineer at Launchpad AI

Hi Jamie Park,

Thank you for applying to the Backend Engineer position at Launchpad AI. We'd like to invite you to a 45-minute technical interview with Priya Shah on March 12, 2025 at 2:00 PM PT via Zoom.

Join here: https://zoom.us/j/123456

Best,
Launchpad AI Recruiting Team`

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Generate(ctx context.Context, req generate.Request) (*generate.Response, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*generate.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

type stubExtractor struct {
	name  string
	spans []model.EntitySpan
	err   error
	calls int
}

func (s *stubExtractor) Name() string { return s.name }

func (s *stubExtractor) Extract(context.Context, string) ([]model.EntitySpan, error) {
	s.calls++
	return s.spans, s.err
}

func firstByLabel(spans []model.EntitySpan) map[string]string {
	out := make(map[string]string)
	for _, s := range spans {
		if _, ok := out[s.Label]; !ok {
			out[s.Label] = s.Text
		}
	}
	return out
}

func TestPattern_Invitation(t *testing.T) {
	spans, err := NewPattern().Extract(context.Background(), invitation)
	require.NoError(t, err)

	got := firstByLabel(spans)
	assert.Equal(t, "Jamie Park", got[model.LabelCandidate])
	assert.Equal(t, "Launchpad AI", got[model.LabelCompany])
	assert.Equal(t, "Backend Engineer", got[model.LabelRole])
	assert.Equal(t, "Priya Shah", got[model.LabelInterviewer])
	assert.Equal(t, "March 12, 2025", got[model.LabelDate])
	assert.Equal(t, "2:00 PM PT", got[model.LabelTime])
	assert.Equal(t, "45-minute", got[model.LabelDuration])
	assert.Equal(t, "Zoom", got[model.LabelFormat])
	assert.Equal(t, "https://zoom.us/j/123456", got[model.LabelLink])
	_, hasLocation := got[model.LabelLocation]
	assert.False(t, hasLocation)
}

func TestPattern_LabeledFields(t *testing.T) {
	text := "Candidate: Alex Rivera\nCompany: Northwind\nRole: Staff Data Scientist\nInterviewer: Dr. Mina Cho\nLocation: Iribe Center, Room 1105\nDate: 2025-08-25"
	spans, err := NewPattern().Extract(context.Background(), text)
	require.NoError(t, err)

	got := firstByLabel(spans)
	assert.Equal(t, "Alex Rivera", got[model.LabelCandidate])
	assert.Equal(t, "Northwind", got[model.LabelCompany])
	assert.Equal(t, "Staff Data Scientist", got[model.LabelRole])
	assert.Equal(t, "Dr. Mina Cho", got[model.LabelInterviewer])
	assert.Equal(t, "Iribe Center, Room 1105", got[model.LabelLocation])
	assert.Equal(t, "2025-08-25", got[model.LabelDate])
}

func TestPattern_Dedupes(t *testing.T) {
	spans, err := NewPattern().Extract(context.Background(), "via Zoom. Again via Zoom.")
	require.NoError(t, err)
	assert.Len(t, spans, 1)
}

func TestLLM_ParsesFencedJSON(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r generate.Request) bool {
		return r.System == llmSystem && r.MaxTokens == 512
	})).Return(&generate.Response{Text: "```json\n" +
		`[{"label":"candidate","text":" Jamie "},{"label":"PHONE","text":"555"},{"label":"COMPANY","text":""},{"label":"COMPANY","text":"Launchpad AI"}]` +
		"\n```"}, nil)

	spans, err := NewLLM(gen).Extract(context.Background(), "email")
	require.NoError(t, err)
	assert.Equal(t, []model.EntitySpan{
		{Label: model.LabelCandidate, Text: "Jamie"},
		{Label: model.LabelCompany, Text: "Launchpad AI"},
	}, spans)
}

func TestLLM_Errors(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(&generate.Response{Text: "I could not find anything."}, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()

	l := NewLLM(gen)
	_, err := l.Extract(context.Background(), "email")
	assert.Contains(t, err.Error(), "parse")
	_, err = l.Extract(context.Background(), "email")
	assert.Contains(t, err.Error(), "timeout")
}

func TestChain_StopsAtCandidate(t *testing.T) {
	a := &stubExtractor{name: "a", spans: []model.EntitySpan{{Label: model.LabelCompany, Text: "Launchpad AI"}}}
	b := &stubExtractor{name: "b", spans: []model.EntitySpan{{Label: model.LabelCandidate, Text: "Jamie"}}}
	c := &stubExtractor{name: "c"}

	spans, err := NewChain(a, nil, b, c).Extract(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, spans, 2)
	assert.Equal(t, 0, c.calls)
}

func TestChain_FailuresTolerated(t *testing.T) {
	a := &stubExtractor{name: "a", err: errors.New("down")}
	b := &stubExtractor{name: "b", spans: []model.EntitySpan{{Label: model.LabelRole, Text: "Engineer"}}}

	spans, err := NewChain(a, b).Extract(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, spans, 1)
	assert.Equal(t, "chain(a,b)", NewChain(a, b).Name())
}

func TestChain_AllFail(t *testing.T) {
	a := &stubExtractor{name: "a", err: errors.New("down")}
	_, err := NewChain(a).Extract(context.Background(), "x")
	assert.ErrorIs(t, err, model.ErrCollaboratorUnavailable)
}

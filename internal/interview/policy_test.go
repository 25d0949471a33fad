package interview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldEnd(t *testing.T) {
	tests := []struct {
		kind  Kind
		turns int
		want  bool
	}{
		{KindTechnical, 0, false},
		{KindTechnical, 7, false},
		{KindTechnical, 8, true},
		{KindTechnical, 9, true},
		{KindPersonal, 5, false},
		{KindPersonal, 6, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldEnd(tt.kind, tt.turns), "%s/%d", tt.kind, tt.turns)
	}
}

func TestOpeningMessage(t *testing.T) {
	seen := map[string]bool{}
	for _, kind := range []Kind{KindTechnical, KindPersonal} {
		for _, hasResume := range []bool{true, false} {
			msg := OpeningMessage(kind, hasResume)
			assert.NotEmpty(t, msg)
			assert.False(t, seen[msg], "四种开场白互不相同")
			seen[msg] = true
			assert.Equal(t, hasResume, strings.Contains(msg, "resume"))
		}
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Technical ")
	require.NoError(t, err)
	assert.Equal(t, KindTechnical, k)

	_, err = ParseKind("behavioral")
	assert.Error(t, err)
}

func TestFeedbackValidate(t *testing.T) {
	valid := Feedback{Rating: 7, Strengths: []string{"clear"}, Summary: "ok"}
	require.NoError(t, valid.Validate())

	long := strings.Repeat("x", 501)
	many := make([]string, 11)
	for i := range many {
		many[i] = "item"
	}

	cases := []struct {
		name string
		fb   Feedback
	}{
		{name: "评分过低", fb: Feedback{Rating: 0, Strengths: []string{"a"}}},
		{name: "评分过高", fb: Feedback{Rating: 11, Strengths: []string{"a"}}},
		{name: "两个列表都为空", fb: Feedback{Rating: 5}},
		{name: "空白条目", fb: Feedback{Rating: 5, Suggestions: []string{"  "}}},
		{name: "条目过长", fb: Feedback{Rating: 5, Strengths: []string{long}}},
		{name: "条目过多", fb: Feedback{Rating: 5, Strengths: many}},
		{name: "总结过长", fb: Feedback{Rating: 5, Strengths: []string{"a"}, Summary: strings.Repeat("y", 1001)}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.fb.Validate())
		})
	}
}

func TestSessionClone(t *testing.T) {
	s := &Session{
		ID:       "s1",
		Messages: []Message{{Role: RoleAssistant, Content: "hi"}},
		Feedback: &Feedback{Rating: 5, Strengths: []string{"a"}},
	}
	c := s.Clone()
	c.Messages = append(c.Messages, Message{Role: RoleUser, Content: "x"})
	c.Messages[0].Content = "changed"
	c.Feedback.Strengths[0] = "b"

	assert.Len(t, s.Messages, 1)
	assert.Equal(t, "hi", s.Messages[0].Content)
	assert.Equal(t, "a", s.Feedback.Strengths[0])
}

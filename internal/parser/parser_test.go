package parser

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expectedQ     string
		expectedA     string
		expectedE     string
		expectedT     string
	}{
		{
			name:          "Simple Q&A",
			input:         "Q: What nerve innervates the diaphragm?\nA: The phrenic nerve (C3-C5)",
			expectedCards: 1,
			expectedQ:     "What nerve innervates the diaphragm?",
			expectedA:     "The phrenic nerve (C3-C5)",
		},
		{
			name:          "All fields",
			input:         "Q: First-line treatment for anaphylaxis?\nA: IM adrenaline\nE: Given into the anterolateral thigh\nT: emergency-medicine",
			expectedCards: 1,
			expectedQ:     "First-line treatment for anaphylaxis?",
			expectedA:     "IM adrenaline",
			expectedE:     "Given into the anterolateral thigh",
			expectedT:     "emergency-medicine",
		},
		{
			name: "Multiline answer",
			input: `
Q: Signs of raised intracranial pressure?
A: Headache
Vomiting
Papilloedema
`,
			expectedCards: 1,
			expectedQ:     "Signs of raised intracranial pressure?",
			expectedA:     "Headache\nVomiting\nPapilloedema",
		},
		{
			name: "Two cards split by separator",
			input: `
Q: First question
A: First answer
---
Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name: "New question starts new card without separator",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name:          "Answer without question dropped",
			input:         "A: an orphaned answer",
			expectedCards: 0,
		},
		{
			name:          "Empty input",
			input:         "",
			expectedCards: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cards, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(cards) != tc.expectedCards {
				t.Fatalf("got %d cards, want %d", len(cards), tc.expectedCards)
			}
			if tc.expectedCards != 1 {
				return
			}
			c := cards[0]
			if c.Question != tc.expectedQ {
				t.Errorf("Question = %q, want %q", c.Question, tc.expectedQ)
			}
			if c.Answer != tc.expectedA {
				t.Errorf("Answer = %q, want %q", c.Answer, tc.expectedA)
			}
			if c.Explanation != tc.expectedE {
				t.Errorf("Explanation = %q, want %q", c.Explanation, tc.expectedE)
			}
			if c.Topic != tc.expectedT {
				t.Errorf("Topic = %q, want %q", c.Topic, tc.expectedT)
			}
		})
	}
}

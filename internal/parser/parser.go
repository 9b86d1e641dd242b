// Package parser extracts flashcards from markdown deck files.
//
// A card is a block of labeled lines:
//
//	Q: question text
//	A: answer text
//	E: optional explanation
//	T: optional topic
//
// Labels may span multiple lines until the next label. "---" ends a card
// explicitly; a new Q: also starts the next card.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/medrevise/reviewd/internal/domain"
)

const (
	questionPrefix    = "Q:"
	answerPrefix      = "A:"
	explanationPrefix = "E:"
	topicPrefix       = "T:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingExplanation
	readingTopic
)

// ParseFile reads a file from the given path and extracts all cards.
// Card IDs are left empty; identity is assigned by the cardid package.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all cards.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var current domain.Card
	var block []string
	st := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch st {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		case readingExplanation:
			current.Explanation = content
		case readingTopic:
			current.Topic = strings.TrimSpace(content)
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Question != "" {
			cards = append(cards, current)
		}
		current = domain.Card{}
		st = seeking
	}

	startBlock := func(next state, line, prefix string) {
		flushBlock()
		st = next
		content := strings.TrimPrefix(line, prefix)
		if strings.HasPrefix(content, " ") {
			content = content[1:]
		}
		block = append(block, content)
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "---":
			finishCard()
		case strings.HasPrefix(line, questionPrefix):
			if st != seeking { // a new question always starts a new card
				finishCard()
			}
			startBlock(readingQuestion, line, questionPrefix)
		case strings.HasPrefix(line, answerPrefix):
			startBlock(readingAnswer, line, answerPrefix)
		case strings.HasPrefix(line, explanationPrefix):
			startBlock(readingExplanation, line, explanationPrefix)
		case strings.HasPrefix(line, topicPrefix):
			startBlock(readingTopic, line, topicPrefix)
		default:
			if st != seeking {
				block = append(block, line)
			}
		}
	}

	finishCard() // the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

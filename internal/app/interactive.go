package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

const prompt = "\nYour question: "

var banner = "RAG Pipeline Interactive Mode\nType 'quit' to exit\n" + strings.Repeat("-", 50)

var quitWords = map[string]struct{}{"quit": {}, "exit": {}, "q": {}}

type Answerer interface {
	Query(ctx context.Context, question string, topK int) string
}

// Session reads questions line by line and prints one answer per question.
type Session struct {
	in       io.Reader
	out      io.Writer
	answerer Answerer
	topK     int
}

func NewSession(in io.Reader, out io.Writer, answerer Answerer, topK int) *Session {
	return &Session{in: in, out: out, answerer: answerer, topK: topK}
}

// Run loops until a quit word, end of input or cancellation of ctx. A question already
// sent to the model is answered even if ctx is cancelled meanwhile.
func (s *Session) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	lines := s.readLines(done)

	fmt.Fprintln(s.out, banner)
	for {
		fmt.Fprint(s.out, prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			log.Debug().Msg("Interactive session interrupted")
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				return nil
			}
			line = l
		}

		question := strings.TrimSpace(line)
		if _, quit := quitWords[strings.ToLower(question)]; quit {
			return nil
		}
		if question == "" {
			continue
		}

		answer := s.answerer.Query(context.WithoutCancel(ctx), question, s.topK)
		fmt.Fprintf(s.out, "\nAnswer: %s\n", answer)
	}
}

// readLines feeds input lines to the returned channel until EOF or until done is closed.
func (s *Session) readLines(done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Error().Err(err).Msg("Error reading input")
		}
	}()
	return lines
}

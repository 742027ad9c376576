// Package assembler drives a model through as many turns as it needs to finish
// a list of git-formatted change suggestions.
package assembler

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/metrics"
)

// EndOfSuggestions is the line a model writes once it has no more changes.
const EndOfSuggestions = "END_OF_SUGGESTIONS"

// DefaultMaxRequests bounds the number of turns when no cap is configured.
const DefaultMaxRequests = 10

// ErrNoGitCommands means the model answered without any git command. The
// request cannot be answered and is not retried.
var ErrNoGitCommands = errors.New("no valid git commands found in the response")

const commandPrefix = "git"

// Invoker sends one prompt to a model.
type Invoker interface {
	Invoke(ctx context.Context, prompt, imageBase64 string) (string, error)
}

// ResultFunc receives the outcome of every model call, nil on success.
type ResultFunc func(err error)

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxRequests caps the number of turns. Values below 1 select DefaultMaxRequests.
func WithMaxRequests(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxRequests = n
		}
	}
}

// WithResultHook registers fn to observe each call outcome.
func WithResultHook(fn ResultFunc) Option {
	return func(a *Assembler) {
		a.onResult = fn
	}
}

// Assembler accumulates a multi-turn response.
type Assembler struct {
	client      Invoker
	maxRequests int
	onResult    ResultFunc
}

// New returns an Assembler talking to client.
func New(client Invoker, opts ...Option) *Assembler {
	a := &Assembler{client: client, maxRequests: DefaultMaxRequests}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble sends prompt (and the image, on the first turn only) and keeps asking
// the model to continue until it writes EndOfSuggestions or the request cap is
// reached. Between turns the accumulated text is cut back before its last git
// command so a command interrupted mid-way is written again in full.
//
// A failed call ends the loop and whatever was accumulated is returned. Reaching
// the cap is not an error either. Only a first answer without any git command
// fails, with ErrNoGitCommands.
func (a *Assembler) Assemble(ctx context.Context, prompt, imageBase64 string) (string, error) {
	var full string
	current := prompt
	finished := false
	turns := 0

	for turns < a.maxRequests {
		if err := ctx.Err(); err != nil {
			log.Warnf("Stopping after %d requests: %v", turns, err)
			return full, nil
		}
		turns++
		log.Infof("Making request %d...", turns)

		image := ""
		if turns == 1 {
			image = imageBase64
		}
		reply, err := a.client.Invoke(ctx, current, image)
		a.report(err)
		metrics.AssemblyTurn()
		if err != nil {
			log.Errorf("Error making request: %v", err)
			break
		}
		full += reply

		if strings.Contains(reply, EndOfSuggestions) {
			log.Info("Received end of suggestions signal.")
			finished = true
			break
		}
		if turns == 1 && !strings.Contains(reply, commandPrefix) {
			return "", ErrNoGitCommands
		}

		last := strings.LastIndex(full, commandPrefix)
		if last < 0 {
			return "", ErrNoGitCommands
		}
		full = full[:last]
		current = continuationPrompt(prompt, full)
	}

	if !finished && turns >= a.maxRequests {
		log.Warnf("Reached maximum number of requests (%d). The response may be incomplete.", a.maxRequests)
	}
	return full, nil
}

func continuationPrompt(initial, soFar string) string {
	return initial + "\n\nPrevious response:\n" + soFar +
		"\n\nPlease continue from where you left off. Remember to end your response with " +
		EndOfSuggestions + " when you have no more changes to suggest."
}

func (a *Assembler) report(err error) {
	if a.onResult != nil {
		a.onResult(err)
	}
}

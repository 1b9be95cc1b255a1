package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// scriptedChats hands out one chat per reply, in order, and records what
// every chat was asked.
type scriptedChats struct {
	mu       sync.Mutex
	replies  []reply
	sessions []*scriptedChat
}

type reply struct {
	text string
	err  error
}

type scriptedChat struct {
	config *genai.GenerateContentConfig
	reply  reply
	sent   []string
}

func (c *scriptedChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, part := range parts {
		c.sent = append(c.sent, part.Text)
	}
	if c.reply.err != nil {
		return nil, c.reply.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: c.reply.text}}},
		}},
	}, nil
}

func (s *scriptedChats) Create(_ context.Context, _ string, config *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	chat := &scriptedChat{config: config, reply: s.replies[0]}
	s.replies = s.replies[1:]
	s.sessions = append(s.sessions, chat)
	return chat, nil
}

func script(replies ...reply) *scriptedChats {
	return &scriptedChats{replies: replies}
}

func newTestGenerator(chats chatCreator, retries int) *Generator {
	return &Generator{chats: chats, model: "gemini-test", maxRetries: retries, logger: zap.NewNop()}
}

// recordSleeps replaces the retry sleep for the duration of the test.
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	original := sleep
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = original })
	return &slept
}

var serverError = genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}

func TestGenerateContentSendsSystemAndPrompt(t *testing.T) {
	chats := script(reply{text: `{"summary": "ok"}`})

	out, err := newTestGenerator(chats, 1).GenerateContent(context.Background(), "be an editor", "polish this profile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"summary": "ok"}` {
		t.Fatalf("unexpected output: %q", out)
	}

	session := chats.sessions[0]
	if session.config.SystemInstruction == nil || session.config.SystemInstruction.Parts[0].Text != "be an editor" {
		t.Fatalf("system instruction not set: %+v", session.config.SystemInstruction)
	}
	if session.config.ResponseMIMEType != "application/json" {
		t.Fatalf("unexpected response mime type: %q", session.config.ResponseMIMEType)
	}
	if len(session.sent) != 1 || session.sent[0] != "polish this profile" {
		t.Fatalf("unexpected message: %v", session.sent)
	}
}

func TestGenerateContentRetries(t *testing.T) {
	tests := []struct {
		name     string
		retries  int
		replies  []reply
		wantErr  bool
		sessions int
		slept    []time.Duration
	}{
		{
			name:     "server error then success",
			retries:  2,
			replies:  []reply{{err: serverError}, {text: "{}"}},
			sessions: 2,
		},
		{
			name:     "server errors exhaust retries",
			retries:  2,
			replies:  []reply{{err: serverError}, {err: serverError}},
			wantErr:  true,
			sessions: 2,
		},
		{
			name:    "short quota hint is honoured",
			retries: 3,
			replies: []reply{
				{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED", Message: "rate limited, retry in 1.5s"}},
				{text: "{}"},
			},
			sessions: 2,
			slept:    []time.Duration{1500 * time.Millisecond},
		},
		{
			name:    "long quota hint fails fast",
			retries: 3,
			replies: []reply{
				{err: genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED", Message: "quota exhausted, retry after 60 seconds"}},
			},
			wantErr:  true,
			sessions: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slept := recordSleeps(t)
			chats := script(tt.replies...)

			_, err := newTestGenerator(chats, tt.retries).GenerateContent(context.Background(), "sys", "msg")
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(chats.sessions) != tt.sessions {
				t.Fatalf("expected %d attempts, got %d", tt.sessions, len(chats.sessions))
			}
			if tt.slept != nil && (len(*slept) != len(tt.slept) || (*slept)[0] != tt.slept[0]) {
				t.Fatalf("unexpected delays: %v", *slept)
			}
		})
	}
}

func TestGenerateContentDoesNotRetryClientErrors(t *testing.T) {
	chats := script(reply{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}})

	_, err := newTestGenerator(chats, 3).GenerateContent(context.Background(), "sys", "msg")
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusBadRequest {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
	if len(chats.sessions) != 1 {
		t.Fatalf("expected single attempt, got %d", len(chats.sessions))
	}
}

func TestGenerateContentBlankInput(t *testing.T) {
	chats := script(reply{text: "  "})

	if _, err := newTestGenerator(chats, 2).GenerateContent(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error for blank response")
	}
	if chats.sessions[0].config.SystemInstruction != nil {
		t.Fatal("blank system prompt must not set a system instruction")
	}

	if _, err := newTestGenerator(script(), 1).GenerateContent(context.Background(), "sys", "   "); err == nil {
		t.Fatal("expected error for blank prompt")
	}
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), Options{APIKey: " "}, nil); err == nil {
		t.Fatal("expected error without api key")
	}
}

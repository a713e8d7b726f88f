package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SVAnbarasan/ZeroByX/adapters/cache"
)

// recordingWriter keeps every Write call separately.
type recordingWriter struct {
	writes []string
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, string(p))
	return len(p), nil
}

func TestAgentService_StreamsChunksThenLabelledReply(t *testing.T) {
	gen := &fakeLlm{chunks: []string{"Least ", "privilege."}}
	svc := NewAgentService(gen, fakePersonas{}, cache.Nop{}, time.Minute)

	w := &recordingWriter{}
	final, err := svc.Respond(context.Background(), "theta", "  What is least privilege?\n", w)
	require.NoError(t, err)

	assert.Equal(t, "Agent Theta θ\nLeast privilege.", final)
	assert.Equal(t, []string{"Least ", "privilege.", "\nAgent Theta θ\nLeast privilege.\n"}, w.writes)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, "Brief response: What is least privilege?", req.Prompt)
	assert.Equal(t, "defend", req.System)
	assert.Equal(t, "m-theta", req.Model)
	assert.Equal(t, 0.3, req.Temperature)
}

func TestAgentService_UnknownPersonaFallsBackToDefault(t *testing.T) {
	gen := &fakeLlm{chunks: []string{"ok"}}
	svc := NewAgentService(gen, fakePersonas{}, cache.Nop{}, time.Minute)

	final, err := svc.Respond(context.Background(), "lily", "hi", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Agent Theta θ\nok", final)
}

func TestAgentService_TimeoutBecomesFinalFragment(t *testing.T) {
	gen := &fakeLlm{chunks: []string{"partial"}, block: true}
	svc := NewAgentService(gen, fakePersonas{}, cache.Nop{}, 20*time.Millisecond)

	var out bytes.Buffer
	final, err := svc.Respond(context.Background(), "epsilon", "hunt", &out)
	require.NoError(t, err)

	assert.Equal(t, "Agent Epsilon ε\npartial\n[Response timed out after 20ms]", final)
	assert.Contains(t, out.String(), "partial\n[Response timed out after 20ms]")
}

func TestAgentService_ModelErrorBecomesFinalFragment(t *testing.T) {
	gen := &fakeLlm{err: errors.New("connection refused")}
	cached := newMapCache()
	svc := NewAgentService(gen, fakePersonas{}, cached, time.Minute)

	final, err := svc.Respond(context.Background(), "theta", "hi", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Agent Theta θ\n\n[Error: connection refused]", final)
	assert.Zero(t, cached.Len(), "failed replies are not cached")
}

func TestAgentService_EmptyInput(t *testing.T) {
	gen := &fakeLlm{}
	svc := NewAgentService(gen, fakePersonas{}, cache.Nop{}, time.Minute)

	_, err := svc.Respond(context.Background(), "theta", " \n ", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNoInput)
	assert.Zero(t, gen.calls())
}

func TestAgentService_EmptyReply(t *testing.T) {
	svc := NewAgentService(&fakeLlm{}, fakePersonas{}, cache.Nop{}, time.Minute)

	_, err := svc.Respond(context.Background(), "theta", "hi", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestAgentService_CacheHitSkipsModel(t *testing.T) {
	gen := &fakeLlm{chunks: []string{"answer"}}
	cached := newMapCache()
	svc := NewAgentService(gen, fakePersonas{}, cached, time.Minute)

	first, err := svc.Respond(context.Background(), "theta", "q", &bytes.Buffer{})
	require.NoError(t, err)

	var out bytes.Buffer
	second, err := svc.Respond(context.Background(), "theta", "q", &out)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "Agent Theta θ\nanswer\n", out.String())
	assert.Equal(t, 1, gen.calls())

	_, err = svc.Respond(context.Background(), "epsilon", "q", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, gen.calls(), "cache keys include the persona")
}

func TestAgentService_CancelledContextIsReturned(t *testing.T) {
	gen := &fakeLlm{block: true}
	svc := NewAgentService(gen, fakePersonas{}, cache.Nop{}, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Respond(ctx, "theta", "hi", &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "5 minutes", humanDuration(300*time.Second))
	assert.Equal(t, "1 minute", humanDuration(time.Minute))
	assert.Equal(t, "1m30s", humanDuration(90*time.Second))
}

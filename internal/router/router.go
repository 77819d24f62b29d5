// Package router streams LLM responses for user utterances, choosing between
// three response modes and deciding when to augment the model with a live
// web search.
//
// Modes:
//
//   - faster: small model, short answers, never searches.
//   - planning: large model; when the pre-classifier fires, a web search is
//     raced against the LLM call under a budget — if the search wins its
//     results are injected before the first token, otherwise the pure-LLM
//     stream proceeds.
//   - detailed: large model; when the pre-classifier fires, the search is
//     awaited in full before the LLM is called.
//
// The stream yields plain text chunks plus occasional status frames of the
// form "[STATUS: ...]" which the gateway surfaces to the client out of band.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxgate-ai/voxgate/internal/history"
	"github.com/voxgate-ai/voxgate/internal/observe"
	"github.com/voxgate-ai/voxgate/internal/search"
	"github.com/voxgate-ai/voxgate/pkg/provider/llm"
)

// Mode selects the response strategy.
type Mode string

const (
	ModeFaster   Mode = "faster"
	ModePlanning Mode = "planning"
	ModeDetailed Mode = "detailed"
)

// ParseMode validates a client-supplied mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeFaster, ModePlanning, ModeDetailed:
		return Mode(s), true
	default:
		return "", false
	}
}

const (
	// fasterMaxTokens caps responses in faster mode.
	fasterMaxTokens = 150

	// deepMaxTokens caps responses in planning and detailed modes.
	deepMaxTokens = 250

	// SearchBudget is how long planning mode waits for the racing search
	// before proceeding without it.
	SearchBudget = 800 * time.Millisecond

	// maxSearchContext caps the search results injected into the prompt.
	maxSearchContext = 2000

	statusPrefix = "[STATUS: "
	statusSuffix = "]"
)

// DefaultSystemPrompt keeps answers short enough to speak.
const DefaultSystemPrompt = "You are a helpful and concise voice assistant. " +
	"Give short, conversational answers suitable for real-time speech."

const (
	emptyInputReply = "I didn't catch that. Could you say it again?"
	apologyReply    = "I'm sorry, I'm having trouble processing that."
)

// Status wraps text in a status frame.
func Status(text string) string {
	return statusPrefix + text + statusSuffix
}

// ParseStatus reports whether a stream chunk is a status frame and returns
// its payload.
func ParseStatus(chunk string) (string, bool) {
	if strings.HasPrefix(chunk, statusPrefix) && strings.HasSuffix(chunk, statusSuffix) {
		return chunk[len(statusPrefix) : len(chunk)-len(statusSuffix)], true
	}
	return "", false
}

// Router turns a user utterance plus history into a lazy stream of response
// chunks. It is safe for concurrent use; mode and system prompt updates from
// control frames apply to subsequent turns.
type Router struct {
	fast     llm.Provider
	deep     llm.Provider
	fallback llm.Provider
	searcher search.Client
	cache    *history.ResponseCache

	mu           sync.Mutex
	mode         Mode
	systemPrompt string
}

// Option configures a Router.
type Option func(*Router)

// WithFallback sets the secondary, non-streaming LLM provider used when the
// primary fails.
func WithFallback(p llm.Provider) Option {
	return func(r *Router) { r.fallback = p }
}

// WithSearch enables web search augmentation.
func WithSearch(c search.Client) Option {
	return func(r *Router) { r.searcher = c }
}

// WithCache enables the first-turn response cache.
func WithCache(c *history.ResponseCache) Option {
	return func(r *Router) { r.cache = c }
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(r *Router) { r.systemPrompt = prompt }
}

// New creates a Router. fast serves faster mode; deep serves planning and
// detailed. The initial mode is faster.
func New(fast, deep llm.Provider, opts ...Option) *Router {
	r := &Router{
		fast:         fast,
		deep:         deep,
		mode:         ModeFaster,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// SetMode switches the response mode for subsequent turns.
func (r *Router) SetMode(m Mode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = m
}

// Mode returns the current response mode.
func (r *Router) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetSystemPrompt installs a new system prompt. Callers sanitise first.
func (r *Router) SetSystemPrompt(prompt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prompt != "" {
		r.systemPrompt = prompt
	}
}

// SystemPrompt returns the current system prompt.
func (r *Router) SystemPrompt() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.systemPrompt
}

// Model returns the model identifier the current mode routes to.
func (r *Router) Model() string {
	if r.Mode() == ModeFaster {
		return r.fast.Model()
	}
	return r.deep.Model()
}

// Stream produces the response to input given the conversation history. The
// returned channel is closed when the response is complete, the context is
// cancelled, or an unrecoverable provider failure has been converted into an
// apology chunk. tr may be nil.
func (r *Router) Stream(ctx context.Context, input string, hist []llm.Message, tr *observe.Tracker) <-chan string {
	out := make(chan string, 16)
	go func() {
		defer close(out)
		r.run(ctx, out, input, hist, tr)
	}()
	return out
}

// searchResult carries the outcome of an async search task.
type searchResult struct {
	text string
	err  error
}

func (r *Router) run(ctx context.Context, out chan<- string, input string, hist []llm.Message, tr *observe.Tracker) {
	input = strings.TrimSpace(input)
	if input == "" {
		emit(ctx, out, emptyInputReply)
		return
	}

	mode := r.Mode()
	sys := r.SystemPrompt()
	provider, maxTokens := r.deep, deepMaxTokens
	if mode == ModeFaster {
		provider, maxTokens = r.fast, fasterMaxTokens
	}

	// First-turn cache: with history the same words can mean something else.
	if len(hist) == 0 && r.cache != nil {
		cached, hit, err := r.cache.Get(ctx, input, sys)
		if err != nil {
			slog.Warn("response cache unavailable", "error", err)
		}
		observe.DefaultMetrics().RecordCacheLookup(ctx, hit)
		if hit {
			emit(ctx, out, cached)
			return
		}
	}

	var searchCtx string
	if mode != ModeFaster && r.searcher != nil && NeedsSearch(input) {
		emit(ctx, out, Status("Searching the web..."))

		switch mode {
		case ModeDetailed:
			searchCtx = r.awaitSearch(ctx, input, tr)
		case ModePlanning:
			full, streamErr, started := r.racePlanning(ctx, out, input, hist, sys, maxTokens, provider, tr)
			if !started || (streamErr && full == "") {
				r.deliverFallback(ctx, out, input, hist, sys, maxTokens)
				return
			}
			if !streamErr {
				r.maybeCache(ctx, input, sys, hist, full)
			}
			return
		}
	}

	ch, err := provider.StreamCompletion(ctx, r.buildRequest(sys, hist, input, searchCtx, maxTokens))
	if err != nil {
		slog.Warn("primary LLM stream failed to start", "error", err)
		r.deliverFallback(ctx, out, input, hist, sys, maxTokens)
		return
	}

	full, streamErr := pump(ctx, out, ch, nil)
	if streamErr && full == "" {
		r.deliverFallback(ctx, out, input, hist, sys, maxTokens)
		return
	}
	if !streamErr {
		r.maybeCache(ctx, input, sys, hist, full)
	}
}

// awaitSearch runs the search to completion (detailed mode) and returns the
// truncated context block, or "" on failure.
func (r *Router) awaitSearch(ctx context.Context, query string, tr *observe.Tracker) string {
	startTiming(tr, observe.TimingSearchLatency)
	defer stopTiming(tr, observe.TimingSearchLatency)

	text, err := r.searcher.Search(ctx, query)
	if err != nil {
		slog.Warn("search failed, answering without results", "error", err)
		return ""
	}
	return truncateRunes(text, maxSearchContext)
}

// racePlanning implements the planning-mode search race: the search task and
// the pure-LLM stream start together. If search results arrive before the
// first token and within budget, the initial stream is cancelled and the LLM
// restarted with the results injected; otherwise the pure stream is
// delivered as-is.
//
// started=false means no stream could be opened at all — nothing beyond the
// status frame was emitted and the caller should fall back. streamErr
// mirrors pump's error flag.
func (r *Router) racePlanning(ctx context.Context, out chan<- string, input string, hist []llm.Message, sys string, maxTokens int, provider llm.Provider, tr *observe.Tracker) (full string, streamErr, started bool) {
	startTiming(tr, observe.TimingSearchLatency)
	resultCh := make(chan searchResult, 1)
	go func() {
		text, err := r.searcher.Search(ctx, input)
		resultCh <- searchResult{text: text, err: err}
	}()

	llmCtx, cancelLLM := context.WithCancel(ctx)
	defer cancelLLM()
	ch, err := provider.StreamCompletion(llmCtx, r.buildRequest(sys, hist, input, "", maxTokens))
	if err != nil {
		stopTiming(tr, observe.TimingSearchLatency)
		slog.Warn("primary LLM stream failed to start", "error", err)
		return "", false, false
	}

	timer := time.NewTimer(SearchBudget)
	defer timer.Stop()

	for {
		select {
		case res := <-resultCh:
			stopTiming(tr, observe.TimingSearchLatency)
			if res.err != nil || res.text == "" {
				slog.Warn("search failed, streaming without results", "error", res.err)
				full, streamErr = pump(ctx, out, ch, nil)
				return full, streamErr, true
			}

			// Search won: discard the pure stream and restart with results.
			cancelLLM()
			go drain(ch)
			searchCtx := truncateRunes(res.text, maxSearchContext)
			augCh, err := provider.StreamCompletion(ctx, r.buildRequest(sys, hist, input, searchCtx, maxTokens))
			if err != nil {
				slog.Warn("search-augmented LLM stream failed to start", "error", err)
				return "", false, false
			}
			full, streamErr = pump(ctx, out, augCh, nil)
			return full, streamErr, true

		case c, open := <-ch:
			// First event from the pure stream: the race is over and the
			// stream proceeds without search context.
			stopTiming(tr, observe.TimingSearchLatency)
			if !open {
				return "", false, true
			}
			if c.FinishReason == "error" {
				slog.Warn("LLM stream error", "detail", c.Text)
				return "", true, true
			}
			full, streamErr = pump(ctx, out, ch, []llm.Chunk{c})
			return full, streamErr, true

		case <-timer.C:
			// Budget exhausted: proceed without results.
			stopTiming(tr, observe.TimingSearchLatency)
			full, streamErr = pump(ctx, out, ch, nil)
			return full, streamErr, true

		case <-ctx.Done():
			stopTiming(tr, observe.TimingSearchLatency)
			return "", false, true
		}
	}
}

// deliverFallback answers via the secondary provider's non-streaming call,
// or with a fixed apology when no fallback is configured or it also fails.
func (r *Router) deliverFallback(ctx context.Context, out chan<- string, input string, hist []llm.Message, sys string, maxTokens int) {
	if r.fallback == nil {
		emit(ctx, out, apologyReply)
		return
	}

	resp, err := r.fallback.Complete(ctx, r.buildRequest(sys, hist, input, "", maxTokens))
	if err != nil || resp == nil || resp.Content == "" {
		slog.Error("fallback LLM failed", "error", err)
		emit(ctx, out, apologyReply)
		return
	}
	slog.Info("served response via fallback provider", "model", r.fallback.Model())
	for _, piece := range chunkText(resp.Content, 48) {
		if !emit(ctx, out, piece) {
			return
		}
	}
}

// buildRequest assembles the completion request: system prompt, optional
// search context as an extra system message, trailing history, and the user
// utterance last.
func (r *Router) buildRequest(sys string, hist []llm.Message, input, searchCtx string, maxTokens int) llm.CompletionRequest {
	msgs := make([]llm.Message, 0, len(hist)+2)
	msgs = append(msgs, hist...)
	if searchCtx != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: "Search Results: " + searchCtx})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: input})

	return llm.CompletionRequest{
		Messages:     msgs,
		SystemPrompt: sys,
		MaxTokens:    maxTokens,
	}
}

// maybeCache stores a completed first-turn response.
func (r *Router) maybeCache(ctx context.Context, input, sys string, hist []llm.Message, full string) {
	if r.cache == nil || len(hist) != 0 || full == "" {
		return
	}
	if err := r.cache.Set(ctx, input, sys, full); err != nil {
		slog.Warn("response cache store failed", "error", err)
	}
}

// pump forwards pre-buffered chunks and then the live stream to out,
// accumulating the full text. Returns the accumulated text and whether the
// stream ended with a provider error.
func pump(ctx context.Context, out chan<- string, ch <-chan llm.Chunk, pre []llm.Chunk) (string, bool) {
	var sb strings.Builder
	for _, c := range pre {
		if c.Text != "" {
			sb.WriteString(c.Text)
			if !emit(ctx, out, c.Text) {
				return sb.String(), false
			}
		}
	}
	for {
		select {
		case c, open := <-ch:
			if !open {
				return sb.String(), false
			}
			if c.FinishReason == "error" {
				slog.Warn("LLM stream error", "detail", c.Text)
				return sb.String(), true
			}
			if c.Text != "" {
				sb.WriteString(c.Text)
				if !emit(ctx, out, c.Text) {
					return sb.String(), false
				}
			}
		case <-ctx.Done():
			go drain(ch)
			return sb.String(), false
		}
	}
}

// emit sends one chunk unless the context is done. Reports whether the send
// happened.
func emit(ctx context.Context, out chan<- string, s string) bool {
	select {
	case out <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

// chunkText splits s into pieces of roughly n bytes on word boundaries, so a
// non-streaming fallback response still animates client-side.
func chunkText(s string, n int) []string {
	words := strings.Fields(s)
	var out []string
	var sb strings.Builder
	for _, w := range words {
		if sb.Len() > 0 && sb.Len()+len(w)+1 > n {
			out = append(out, sb.String()+" ")
			sb.Reset()
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w)
	}
	if sb.Len() > 0 {
		out = append(out, sb.String())
	}
	return out
}

// drain discards the remainder of a cancelled stream so the provider's
// goroutine can exit.
func drain(ch <-chan llm.Chunk) {
	for range ch {
	}
}

// truncateRunes caps s at n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// startTiming and stopTiming tolerate a nil tracker.
func startTiming(tr *observe.Tracker, name string) {
	if tr != nil {
		tr.StartTiming(name)
	}
}

func stopTiming(tr *observe.Tracker, name string) {
	if tr != nil {
		tr.StopTiming(name)
	}
}

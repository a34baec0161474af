package usecase

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/internal/domain"
)

type mockLLM struct {
	answer string
	err    error

	calls    int
	captured domain.Completion
}

func (m *mockLLM) Complete(_ context.Context, in domain.Completion) (string, error) {
	m.calls++
	m.captured = in
	return m.answer, m.err
}

func newService(t *testing.T, llm Completer, opts ...Option) *ChatService {
	t.Helper()
	s, err := NewChatService(llm, opts...)
	require.NoError(t, err)
	return s
}

func requireCode(t *testing.T, err error, code ErrorCode) *Error {
	t.Helper()
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, code, ucErr.Code)
	require.NotEmpty(t, ucErr.Detail)
	return ucErr
}

func TestNewChatService_NilCompleter(t *testing.T) {
	_, err := NewChatService(nil)
	require.Error(t, err)
}

func TestNewChatService_Defaults(t *testing.T) {
	s := newService(t, &mockLLM{})
	require.Equal(t, DefaultModel, s.Model())
	require.InDelta(t, DefaultTemperature, s.temperature, 1e-9)

	s = newService(t, &mockLLM{}, WithModel("  "))
	require.Equal(t, DefaultModel, s.Model())

	s = newService(t, &mockLLM{}, WithModel("gpt-4.1-mini"))
	require.Equal(t, "gpt-4.1-mini", s.Model())
}

func TestChat_EmptyMessageNeverCallsUpstream(t *testing.T) {
	for _, msg := range []string{"", " ", "  ", "\t\n", " \r\n\t "} {
		llm := &mockLLM{answer: "should not be used"}
		s := newService(t, llm)

		_, err := s.Chat(context.Background(), ChatInput{Message: msg})
		ucErr := requireCode(t, err, ErrorInvalidInput)
		require.Equal(t, "Message must not be empty.", ucErr.Detail)
		require.Zero(t, llm.calls, "message=%q", msg)
	}
}

func TestChat_SendsFixedSystemTurnAndTrimmedUserTurn(t *testing.T) {
	llm := &mockLLM{answer: "Hi there!"}
	s := newService(t, llm)

	out, err := s.Chat(context.Background(), ChatInput{Message: "  Hello \n"})
	require.NoError(t, err)
	require.Equal(t, "Hi there!", out.Response)

	require.Equal(t, 1, llm.calls)
	require.Equal(t, domain.Completion{
		Model:       "gpt-4o-mini",
		Temperature: 0.7,
		Messages: []domain.ChatMessage{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Hello"},
		},
	}, llm.captured)
}

func TestChat_ReturnsAnswerVerbatim(t *testing.T) {
	for _, answer := range []string{"x", "  padded  ", "line one\nline two", "ünïcødé ✓"} {
		s := newService(t, &mockLLM{answer: answer})
		out, err := s.Chat(context.Background(), ChatInput{Message: "Hello"})
		require.NoError(t, err)
		require.Equal(t, answer, out.Response)
	}
}

func TestChat_MapsUpstreamFailures(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		err    error
		code   ErrorCode
		status int
		detail string
	}{
		{
			name:   "configuration",
			err:    &domain.ConfigurationError{Setting: "OPENAI_API_KEY"},
			code:   ErrorServiceUnavailable,
			status: http.StatusInternalServerError,
			detail: "OPENAI_API_KEY is not set.",
		},
		{
			name:   "empty response sentinel",
			err:    domain.ErrEmptyResponse,
			code:   ErrorEmptyUpstreamResponse,
			status: http.StatusBadGateway,
			detail: "Empty response from model.",
		},
		{
			name:   "empty answer without error",
			answer: "",
			code:   ErrorEmptyUpstreamResponse,
			status: http.StatusBadGateway,
			detail: "Empty response from model.",
		},
		{
			name:   "upstream",
			err:    &domain.UpstreamError{StatusCode: 429, Description: "openai: status 429: Rate limit reached"},
			code:   ErrorUpstream,
			status: http.StatusBadGateway,
			detail: "Upstream error: openai: status 429: Rate limit reached",
		},
		{
			name:   "untyped",
			err:    errors.New("boom"),
			code:   ErrorUpstream,
			status: http.StatusBadGateway,
			detail: "Upstream error: boom",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &mockLLM{answer: tc.answer, err: tc.err}
			s := newService(t, llm)

			out, err := s.Chat(context.Background(), ChatInput{Message: "Hello"})
			require.Empty(t, out.Response)
			ucErr := requireCode(t, err, tc.code)
			require.Equal(t, tc.detail, ucErr.Detail)
			require.Equal(t, tc.status, ucErr.Code.HTTPStatus())
			require.Equal(t, 1, llm.calls)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestUnconfigured(t *testing.T) {
	s := newService(t, Unconfigured(nil))
	_, err := s.Chat(context.Background(), ChatInput{Message: "Hello"})
	ucErr := requireCode(t, err, ErrorServiceUnavailable)
	require.Equal(t, "OPENAI_API_KEY is not set.", ucErr.Detail)

	custom := &domain.ConfigurationError{Setting: "OPENAI_API_KEY", Message: "OPENAI_API_KEY could not be loaded."}
	s = newService(t, Unconfigured(custom))
	_, err = s.Chat(context.Background(), ChatInput{Message: "Hello"})
	ucErr = requireCode(t, err, ErrorServiceUnavailable)
	require.Equal(t, "OPENAI_API_KEY could not be loaded.", ucErr.Detail)
}

func TestError_Format(t *testing.T) {
	e := newError(ErrorUpstream, "Upstream error: x", errors.New("cause"))
	require.Equal(t, "usecase: UPSTREAM_ERROR (Upstream error: x): cause", e.Error())
	require.Equal(t, "usecase: INVALID_INPUT (d)", newError(ErrorInvalidInput, "d", nil).Error())

	var nilErr *Error
	require.Empty(t, nilErr.Error())
	require.NoError(t, nilErr.Unwrap())
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, ErrorInvalidInput.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, ErrorServiceUnavailable.HTTPStatus())
	require.Equal(t, http.StatusBadGateway, ErrorEmptyUpstreamResponse.HTTPStatus())
	require.Equal(t, http.StatusBadGateway, ErrorUpstream.HTTPStatus())
	require.Equal(t, http.StatusInternalServerError, ErrorInternal.HTTPStatus())
}

package captcha

import (
	"context"
	"errors"
	"testing"
	"time"

	api2captcha "github.com/2captcha/2captcha-go"
	"github.com/stretchr/testify/assert"

	"channel-scout/internal/logging"
)

type stubClient struct {
	token string
	err   error
	delay time.Duration
	calls int
}

func (s *stubClient) Solve(req api2captcha.Request) (string, string, error) {
	s.calls++
	time.Sleep(s.delay)
	return s.token, "42", s.err
}

func enabledSolver(client solveClient) *Solver {
	return &Solver{
		enabled:   true,
		newClient: func(time.Duration) solveClient { return client },
		logger:    logging.NewNopLogger(),
	}
}

func TestSolveDisabledWithoutKey(t *testing.T) {
	s := NewSolver(Options{EnableAutoSolve: true}, logging.NewNopLogger())
	token, ok := s.Solve(context.Background(), "key", "https://www.youtube.com/@x/about")
	assert.False(t, ok)
	assert.Empty(t, token)
	assert.False(t, s.Enabled())
}

func TestSolveDisabledByFlag(t *testing.T) {
	s := NewSolver(Options{APIKey: "k", EnableAutoSolve: false}, logging.NewNopLogger())
	assert.False(t, s.Enabled())
}

func TestSolveReturnsToken(t *testing.T) {
	client := &stubClient{token: "03AGdBq2"}
	token, ok := enabledSolver(client).Solve(context.Background(), "site-key", "https://www.youtube.com/@x/about")
	assert.True(t, ok)
	assert.Equal(t, "03AGdBq2", token)
	assert.Equal(t, 1, client.calls)
}

func TestSolveFailureIsSwallowed(t *testing.T) {
	_, ok := enabledSolver(&stubClient{err: errors.New("ERROR_CAPTCHA_UNSOLVABLE")}).Solve(context.Background(), "k", "u")
	assert.False(t, ok)
}

func TestSolveHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, ok := enabledSolver(&stubClient{token: "late", delay: time.Second}).Solve(ctx, "k", "u")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestSolveTimeoutCappedByDeadline(t *testing.T) {
	var got []time.Duration
	s := enabledSolver(&stubClient{token: "tok"})
	s.timeout = 2 * time.Minute
	s.newClient = func(timeout time.Duration) solveClient {
		got = append(got, timeout)
		return &stubClient{token: "tok"}
	}

	_, ok := s.Solve(context.Background(), "k", "u")
	assert.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, ok = s.Solve(ctx, "k", "u")
	assert.True(t, ok)

	if assert.Len(t, got, 2) {
		assert.Equal(t, 2*time.Minute, got[0])
		assert.LessOrEqual(t, got[1], 30*time.Second)
		assert.Greater(t, got[1], 20*time.Second)
	}
}

func TestSolveTimeoutFloor(t *testing.T) {
	s := enabledSolver(&stubClient{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	assert.Equal(t, time.Second, s.solveTimeout(ctx))

	s.timeout = 0
	assert.Zero(t, s.solveTimeout(context.Background()))
}

func TestDetectCaptcha(t *testing.T) {
	found, key := DetectCaptcha(`<div class="g-recaptcha" data-sitekey="6LfwuyUTAAAAAOAmoS0fdqijC2PbbdH4kjq62Y1b"></div>`)
	assert.True(t, found)
	assert.Equal(t, "6LfwuyUTAAAAAOAmoS0fdqijC2PbbdH4kjq62Y1b", key)

	found, key = DetectCaptcha(`<html><body>channel about page</body></html>`)
	assert.False(t, found)
	assert.Empty(t, key)
}

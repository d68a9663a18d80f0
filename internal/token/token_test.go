package token

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestReadBeforeAcquireReturnsErrNotAcquired(t *testing.T) {
	m := New(RefresherFunc(func(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "x"}, nil
	}))
	if _, err := m.Read(); !errors.Is(err, ErrNotAcquired) {
		t.Fatalf("expected ErrNotAcquired, got %v", err)
	}
}

func TestForceRefreshSwapsGenerationAndUnblocksWaiters(t *testing.T) {
	m := New(RefresherFunc(func(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}, nil
	}))

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- m.WaitUntilReady(context.Background())
	}()

	if _, err := m.ForceRefresh(context.Background()); err != nil {
		t.Fatalf("ForceRefresh: %v", err)
	}

	select {
	case err := <-waitDone:
		if err != nil {
			t.Fatalf("WaitUntilReady: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitUntilReady did not unblock after ForceRefresh")
	}

	if m.Generation() != 1 {
		t.Fatalf("expected generation 1, got %d", m.Generation())
	}

	tok, err := m.Read()
	if err != nil || tok.AccessToken != "fresh" {
		t.Fatalf("expected fresh token, got %+v err=%v", tok, err)
	}
}

func TestConcurrentForceRefreshSharesOneUnderlyingCall(t *testing.T) {
	var calls int32
	block := make(chan struct{})
	m := New(RefresherFunc(func(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
		atomic.AddInt32(&calls, 1)
		<-block
		return &oauth2.Token{AccessToken: "fresh"}, nil
	}))

	results := make(chan *oauth2.Token, 2)
	for i := 0; i < 2; i++ {
		go func() {
			tok, err := m.ForceRefresh(context.Background())
			if err != nil {
				t.Errorf("ForceRefresh: %v", err)
			}
			results <- tok
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(block)

	for i := 0; i < 2; i++ {
		<-results
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 underlying refresh call, got %d", got)
	}
}

func TestRetryOnUnauthorizedRefreshesOnceThenRetries(t *testing.T) {
	refreshes := 0
	m := New(RefresherFunc(func(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
		refreshes++
		return &oauth2.Token{AccessToken: "fresh"}, nil
	}))

	attempts := 0
	errUnauthorized := errors.New("401")
	err := RetryOnUnauthorized(context.Background(), m,
		func(err error) bool { return errors.Is(err, errUnauthorized) },
		func() error {
			attempts++
			if attempts == 1 {
				return errUnauthorized
			}
			return nil
		})
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", attempts)
	}
	if refreshes != 1 {
		t.Fatalf("expected exactly 1 refresh, got %d", refreshes)
	}
}

func TestRetryOnUnauthorizedDoesNotRetryOtherErrors(t *testing.T) {
	m := New(RefresherFunc(func(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
		t.Fatal("refresh should not be called for non-401 errors")
		return nil, nil
	}))

	attempts := 0
	otherErr := errors.New("boom")
	err := RetryOnUnauthorized(context.Background(), m,
		func(err error) bool { return false },
		func() error {
			attempts++
			return otherErr
		})
	if !errors.Is(err, otherErr) {
		t.Fatalf("expected original error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", attempts)
	}
}

package errs

import "testing"

func TestKindRetryable(t *testing.T) {
	cases := []struct {
		k    Kind
		want bool
	}{
		{KindUnprocessedRequest, true},
		{KindClosedSession, true},
		{KindRefusedStream, true},
		{KindContentTooLarge, false},
		{KindProtocolViolation, false},
	}
	for _, c := range cases {
		if got := c.k.Retryable(); got != c.want {
			t.Errorf("%v.Retryable() = %v, want %v", c.k, got, c.want)
		}
	}
}

func TestErrorKindsImplementError(t *testing.T) {
	errors := []error{
		&UnprocessedRequest{Cause: ErrTest},
		&ClosedSession{Reason: "x"},
		&SessionProtocolNegotiation{Expected: "h2", Actual: "h1", Reason: "alpn mismatch"},
		&ResponseTimeout{},
		&WriteTimeout{},
		&RefusedStream{},
		&ContentTooLarge{Limit: 10, Received: 20},
		&ClosedPublisher{},
		&HTTPStatus{Status: 404},
		&HTTPResponse{Response: "ok"},
		&ProtocolViolation{Detail: "bad frame"},
	}
	for _, e := range errors {
		if e.Error() == "" {
			t.Errorf("%T: expected non-empty message", e)
		}
	}
}

func TestUnprocessedRequestUnwraps(t *testing.T) {
	wrapped := &UnprocessedRequest{Cause: ErrTest}
	if wrapped.Unwrap() != ErrTest {
		t.Fatalf("expected Unwrap to return the cause")
	}
}

func TestFatalPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Fatal to panic")
		}
	}()
	Fatal("invariant %s broken", "x")
}

// ErrTest is a sentinel used only by this test file.
var ErrTest = &ProtocolViolation{Detail: "test sentinel"}

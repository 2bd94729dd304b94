package stream

import (
	"context"
	"testing"
	"time"
)

func TestPushBlocksUntilDemand(t *testing.T) {
	s := New(NewController())
	pushed := make(chan error, 1)
	go func() {
		pushed <- s.Push(context.Background(), Frame{Data: []byte("hi")})
	}()

	select {
	case <-pushed:
		t.Fatalf("expected Push to block with no demand")
	case <-time.After(20 * time.Millisecond):
	}

	s.RequestN(1)
	select {
	case err := <-pushed:
		if err != nil {
			t.Fatalf("unexpected push error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected Push to unblock after demand")
	}
}

func TestNextDrainsThenReportsEOF(t *testing.T) {
	s := New(nil)
	s.RequestN(1)
	if err := s.Push(context.Background(), Frame{Data: []byte("x")}); err != nil {
		t.Fatalf("push: %v", err)
	}
	s.CloseWithError(nil)

	f, ok, err := s.Next(context.Background())
	if !ok || err != nil || string(f.Data) != "x" {
		t.Fatalf("unexpected first Next: %+v %v %v", f, ok, err)
	}
	_, ok, err = s.Next(context.Background())
	if ok || err != nil {
		t.Fatalf("expected clean EOF, got ok=%v err=%v", ok, err)
	}
}

func TestCancelUnblocksPush(t *testing.T) {
	s := New(nil)
	pushed := make(chan error, 1)
	go func() {
		pushed <- s.Push(context.Background(), Frame{})
	}()
	time.Sleep(10 * time.Millisecond)
	s.Cancel()

	select {
	case err := <-pushed:
		if err == nil {
			t.Fatalf("expected ClosedPublisher after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("expected Push to unblock after cancel")
	}
}

func TestControllerWatermarks(t *testing.T) {
	c := NewControllerWithWatermarks(10, 20)
	c.OnBytesWritten(25)
	if !c.Suspended() {
		t.Fatalf("expected suspension above high watermark")
	}
	c.OnBytesRead(20)
	if c.Suspended() {
		t.Fatalf("expected resumption below low watermark")
	}
}

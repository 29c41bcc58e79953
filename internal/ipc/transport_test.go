package ipc

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/sodove/aios-agent/pkg/apperror"
)

func TestBindAcceptDialRoundTrip(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "agent.sock")

	ln, err := Bind(sockPath)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ln.Close()

	var wg sync.WaitGroup
	wg.Add(1)

	serverErr := make(chan error, 1)
	go func() {
		defer wg.Done()
		conn, err := ln.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()

		env, err := conn.Recv()
		if err != nil {
			serverErr <- err
			return
		}
		if env.Type != TypePing {
			serverErr <- apperror.NewProtocol("unexpected type")
			return
		}

		ack := NewEnvelope(TypePong)
		serverErr <- conn.Send(ack)
	}()

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := client.Send(NewEnvelope(TypePing)); err != nil {
		t.Fatalf("client.Send: %v", err)
	}

	resp, err := client.Recv()
	if err != nil {
		t.Fatalf("client.Recv: %v", err)
	}
	if resp.Type != TypePong {
		t.Fatalf("got type %q, want %q", resp.Type, TypePong)
	}

	wg.Wait()
	if err := <-serverErr; err != nil {
		t.Fatalf("server goroutine error: %v", err)
	}
}

func TestBindRemovesStaleSocketFile(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "agent.sock")

	ln1, err := Bind(sockPath)
	if err != nil {
		t.Fatalf("first Bind: %v", err)
	}
	// Simulate a crashed daemon: the listener is gone but the socket
	// file remains on disk.
	ln1.ln.SetUnlinkOnClose(false)
	ln1.ln.Close()

	ln2, err := Bind(sockPath)
	if err != nil {
		t.Fatalf("second Bind should clean up the stale file: %v", err)
	}
	defer ln2.Close()
}

func TestSplitWriterSerializesConcurrentSends(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "agent.sock")

	ln, err := Bind(sockPath)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer ln.Close()

	const messages = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < messages; i++ {
			if _, err := conn.Recv(); err != nil {
				return
			}
		}
	}()

	client, err := Dial(sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	_, writer := client.Split()

	var wg sync.WaitGroup
	for i := 0; i < messages; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = writer.Send(NewEnvelope(TypePing))
		}()
	}
	wg.Wait()
	<-done
}

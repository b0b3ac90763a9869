package fanout

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTarget runs a TCP listener calling handle for every connection
func startTarget(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()

	return ln.Addr().String()
}

// replyTarget answers every request with reply after an optional delay
func replyTarget(t *testing.T, reply string, delay time.Duration) string {
	return startTarget(t, func(conn net.Conn) {
		buf := make([]byte, DefaultBufferSize)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		time.Sleep(delay)
		_, _ = conn.Write([]byte(reply))
	})
}

// authTarget requires AUTH user pass before accepting a payload.
// Payloads that make it past authentication are sent on received.
func authTarget(t *testing.T, user, pass, reply string) (string, <-chan string) {
	received := make(chan string, 4)
	addr := startTarget(t, func(conn net.Conn) {
		buf := make([]byte, DefaultBufferSize)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		fields := strings.Fields(string(buf[:n]))
		if len(fields) != 3 || fields[0] != "AUTH" || fields[1] != user || fields[2] != pass {
			_, _ = conn.Write([]byte("AUTH FAILED"))
			return
		}
		_, _ = conn.Write([]byte("AUTH OK"))

		n, err = conn.Read(buf)
		if err != nil {
			return
		}
		received <- string(buf[:n])
		_, _ = conn.Write([]byte(reply))
	})
	return addr, received
}

// captureTarget records everything written on the first connection
func captureTarget(t *testing.T) (string, <-chan string) {
	captured := make(chan string, 1)
	var once sync.Once
	addr := startTarget(t, func(conn net.Conn) {
		data, _ := io.ReadAll(conn)
		once.Do(func() { captured <- string(data) })
	})
	return addr, captured
}

// deadAddr returns an address nothing listens on
func deadAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func testTransport() *Transport {
	return NewTransport(time.Second, 2*time.Second, time.Second)
}

func TestFanOut_ScenarioUnreachableThenPong(t *testing.T) {
	a := deadAddr(t)
	b := replyTarget(t, "pong", 0)

	c := NewController([]string{a, b}, WithTransport(testTransport()))
	reply := c.Reflect(context.Background(), []byte("ping"))

	segments := strings.Split(reply, Separator)
	require.Len(t, segments, 2)
	assert.True(t, strings.HasPrefix(segments[0], "Connection error to "+a+": "), segments[0])
	assert.Equal(t, "pong", segments[1])
	assert.True(t, strings.HasSuffix(reply, "\n---\npong"))
}

func TestFanOut_SegmentsFollowTargetOrder(t *testing.T) {
	slow := replyTarget(t, "first", 150*time.Millisecond)
	dead := deadAddr(t)
	fast := replyTarget(t, "third", 0)

	for _, limit := range []int{0, 1, 2} {
		c := NewController([]string{slow, dead, fast},
			WithTransport(testTransport()),
			WithMaxConcurrency(limit),
		)

		segments := strings.Split(c.FanOut(context.Background(), []byte("CONJURE k")), Separator)
		require.Len(t, segments, 3, "limit %d", limit)
		assert.Equal(t, "first", segments[0])
		assert.Contains(t, segments[1], "Connection error to "+dead)
		assert.Equal(t, "third", segments[2])
	}
}

func TestFanOut_AllTargetsFail(t *testing.T) {
	targets := []string{deadAddr(t), deadAddr(t), deadAddr(t), deadAddr(t)}
	c := NewController(targets, WithTransport(testTransport()))

	segments := strings.Split(c.FanOut(context.Background(), []byte("x")), Separator)
	require.Len(t, segments, len(targets))
	for i, segment := range segments {
		assert.True(t, strings.HasPrefix(segment, "Connection error to "+targets[i]), segment)
	}

	_, ok := c.Aggregate().Load()
	assert.False(t, ok, "failed sweep must not fill the aggregate")
	assert.Equal(t, int64(4), c.Stats()["target_failures"])
}

func TestFanOut_ForwardsRequestVerbatim(t *testing.T) {
	addr, received := authTarget(t, "merlin", "secret", "done")

	c := NewController([]string{addr},
		WithTransport(testTransport()),
		WithCredentials(map[string]Credentials{addr: {Username: "merlin", Password: "secret"}}),
	)

	request := "SUMMON spell AS \"lumos\"\r\n"
	assert.Equal(t, "done", c.FanOut(context.Background(), []byte(request)))

	select {
	case got := <-received:
		assert.Equal(t, request, got)
	case <-time.After(time.Second):
		t.Fatal("target never received the payload")
	}
}

func TestFanOut_RejectedCredentials(t *testing.T) {
	guarded, received := authTarget(t, "merlin", "secret", "guarded")
	open := replyTarget(t, "open", 0)

	c := NewController([]string{guarded, open},
		WithTransport(testTransport()),
		WithCredentials(map[string]Credentials{guarded: {Username: "merlin", Password: "wrong"}}),
	)

	segments := strings.Split(c.FanOut(context.Background(), []byte("CONJURE k")), Separator)
	require.Len(t, segments, 2)
	assert.Equal(t, "Authentication rejected for "+guarded, segments[0])
	assert.Equal(t, "open", segments[1])

	select {
	case got := <-received:
		t.Fatalf("rejected target received payload %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFanOut_CredentialedTargetUnreachable(t *testing.T) {
	dead := deadAddr(t)
	c := NewController([]string{dead},
		WithTransport(testTransport()),
		WithCredentials(map[string]Credentials{dead: {Username: "u", Password: "p"}}),
	)

	reply := c.FanOut(context.Background(), []byte("x"))
	assert.True(t, strings.HasPrefix(reply, "Authentication failed for "+dead+": "), reply)
}

func TestFanOut_EmptyTargetList(t *testing.T) {
	c := NewController(nil)
	assert.Equal(t, "", c.FanOut(context.Background(), []byte("x")))
}

func TestReplay_LastSuccessfulResponse(t *testing.T) {
	alpha := replyTarget(t, "alpha", 0)
	beta := replyTarget(t, "beta", 50*time.Millisecond)
	dead := deadAddr(t)

	c := NewController([]string{alpha, beta, dead}, WithTransport(testTransport()))
	c.FanOut(context.Background(), []byte("CONJURE k"))

	receiver, captured := captureTarget(t)
	reply := c.Reflect(context.Background(), []byte("  send TO "+receiver+"\n"))
	assert.Equal(t, "sent to "+receiver, reply)

	select {
	case got := <-captured:
		assert.Equal(t, "beta", got)
	case <-time.After(time.Second):
		t.Fatal("replay never arrived")
	}
}

func TestReplay_NoData(t *testing.T) {
	c := NewController([]string{deadAddr(t)}, WithTransport(testTransport()))

	receiver, captured := captureTarget(t)
	assert.Equal(t, "sent to "+receiver, c.Reflect(context.Background(), []byte("SEND TO "+receiver)))

	select {
	case got := <-captured:
		assert.Equal(t, NoDataSentinel, got)
	case <-time.After(time.Second):
		t.Fatal("replay never arrived")
	}
}

func TestReplay_DoesNotFanOut(t *testing.T) {
	addr, received := authTarget(t, "u", "p", "x")
	c := NewController([]string{addr}, WithTransport(testTransport()))

	reply := c.Reflect(context.Background(), []byte("SEND TO "+deadAddr(t)))
	assert.Contains(t, reply, "failed")

	select {
	case <-received:
		t.Fatal("replay must not contact targets")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, int64(0), c.Stats()["total_sweeps"])
	assert.Equal(t, int64(1), c.Stats()["total_replays"])
}

func TestFanOut_SharedAggregate(t *testing.T) {
	shared := NewAggregate()
	one := NewController([]string{replyTarget(t, "from-one", 0)}, WithAggregate(shared), WithTransport(testTransport()))
	two := NewController(nil, WithAggregate(shared))

	one.FanOut(context.Background(), []byte("x"))

	payload, ok := two.Aggregate().Load()
	require.True(t, ok)
	assert.Equal(t, "from-one", string(payload))
}

func TestFanOut_ContextCancelled(t *testing.T) {
	hang := startTarget(t, func(conn net.Conn) {
		_, _ = io.Copy(io.Discard, conn)
	})

	transport := NewTransport(time.Second, 0, 0)
	c := NewController([]string{hang}, WithTransport(transport))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan string, 1)
	go func() { done <- c.FanOut(ctx, []byte("x")) }()

	select {
	case reply := <-done:
		assert.True(t, strings.HasPrefix(reply, "Connection error to "+hang), reply)
	case <-time.After(2 * time.Second):
		t.Fatal("sweep did not stop on cancellation")
	}
}

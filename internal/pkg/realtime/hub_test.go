package realtime

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	block  chan struct{}
	closed bool
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, 0, len(f.frames))
	for _, raw := range f.frames {
		var m Message
		_ = json.Unmarshal(raw, &m)
		out = append(out, m)
	}
	return out
}

func TestPublishIsScopedToOwner(t *testing.T) {
	hub := NewHub(nil)
	owner, other := &fakeConn{}, &fakeConn{}
	unregisterOwner := hub.Register(1, owner)
	unregisterOther := hub.Register(2, other)

	hub.PublishProgress(context.Background(), 1, "p-1", map[string]interface{}{"progress": 40})

	require.Eventually(t, func() bool { return len(owner.messages()) == 1 }, time.Second, 5*time.Millisecond)
	msg := owner.messages()[0]
	assert.Equal(t, "progress", msg.Type)
	assert.Equal(t, "p-1", msg.ProjectID)
	assert.Equal(t, float64(40), msg.Data.(map[string]interface{})["progress"])
	assert.Empty(t, other.messages())

	unregisterOwner()
	unregisterOther()
	assert.Equal(t, 0, hub.Connections(1))
	assert.True(t, owner.isClosed())
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(nil)
	slow := &fakeConn{block: make(chan struct{})}
	hub.Register(7, slow)

	for i := 0; i < sendBuffer+5; i++ {
		hub.PublishProgress(context.Background(), 7, "p", i)
	}
	assert.Equal(t, 0, hub.Connections(7))
	close(slow.block)
}

func TestConcurrentPublishWhileDroppingClients(t *testing.T) {
	hub := NewHub(nil)
	for round := 0; round < 20; round++ {
		slow := &fakeConn{block: make(chan struct{})}
		unregister := hub.Register(11, slow)

		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				hub.PublishProgress(context.Background(), 11, "p", i)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 0, hub.Connections(11))

		close(slow.block)
		unregister()
	}
}

func TestUnregisterDuringPublish(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.PublishProgress(context.Background(), 12, "p", nil)
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		conn := &fakeConn{}
		unregister := hub.Register(12, conn)
		unregister()
		assert.True(t, conn.isClosed())
	}
	close(stop)
	wg.Wait()
}

func TestPublishWithoutListenersIsNoop(t *testing.T) {
	hub := NewHub(nil)
	hub.PublishProgress(context.Background(), 99, "p", nil)
	assert.Equal(t, 0, hub.Connections(99))
}

func TestRedisFanOut(t *testing.T) {
	host := os.Getenv("CACHE_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("CACHE_PORT")
	if port == "" {
		port = "6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: host + ":" + port, Password: os.Getenv("CACHE_PASSWORD")})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer rdb.Close()

	publisher := NewHub(rdb)
	receiver := NewHub(rdb)
	conn := &fakeConn{}
	receiver.Register(3, conn)

	go func() { _ = receiver.Run(ctx) }()
	require.Eventually(t, func() bool {
		publisher.PublishProgress(ctx, 3, "p-remote", "ping")
		return len(conn.messages()) > 0
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, "p-remote", conn.messages()[0].ProjectID)
}

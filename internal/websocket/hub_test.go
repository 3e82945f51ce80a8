package websocket

import (
	"context"
	"testing"
	"time"
)

func newTestClient(hub *Hub, gameID, playerID string) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan *ServerEnvelope, 256),
		GameID:   gameID,
		PlayerID: playerID,
		ctx:      context.Background(),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func recv(t *testing.T, c *Client) *ServerEnvelope {
	t.Helper()
	select {
	case env := <-c.send:
		return env
	case <-time.After(time.Second):
		t.Fatalf("no envelope for player %s", c.PlayerID)
		return nil
	}
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case env := <-c.send:
		t.Fatalf("player %s got unexpected envelope %+v", c.PlayerID, env)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := startHub(t)
	client := newTestClient(hub, "game-1", "player-1")

	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	if count := hub.GetGameClientCount("game-1"); count != 1 {
		t.Errorf("expected 1 client in game, got %d", count)
	}

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)
	if count := hub.GetGameClientCount("game-1"); count != 0 {
		t.Errorf("expected 0 clients in game after unregister, got %d", count)
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed after unregister")
	}
}

func TestHub_GamesAreIsolated(t *testing.T) {
	hub := startHub(t)
	a := newTestClient(hub, "game-1", "p1")
	b := newTestClient(hub, "game-2", "p2")
	hub.register <- a
	hub.register <- b
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast("game-1", &ServerEnvelope{Type: ServerTypeEvent, Event: "phase_changed"})
	if env := recv(t, a); env.Event != "phase_changed" {
		t.Errorf("got %+v", env)
	}
	expectNone(t, b)
}

func TestHub_SendToPlayer(t *testing.T) {
	hub := startHub(t)
	p1 := newTestClient(hub, "game-1", "p1")
	p2 := newTestClient(hub, "game-1", "p2")
	hub.register <- p1
	hub.register <- p2
	time.Sleep(10 * time.Millisecond)

	hub.SendToPlayer("game-1", "p2", &ServerEnvelope{Type: ServerTypeEvent, Event: "role_assigned"})
	if env := recv(t, p2); env.Event != "role_assigned" {
		t.Errorf("got %+v", env)
	}
	expectNone(t, p1)
}

func TestHub_BroadcastExceptAndView(t *testing.T) {
	hub := startHub(t)
	p1 := newTestClient(hub, "game-1", "p1")
	p2 := newTestClient(hub, "game-1", "p2")
	hub.register <- p1
	hub.register <- p2
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastExcept("game-1", &ServerEnvelope{Type: ServerTypeEvent, Event: "vote_recorded"}, p1)
	if env := recv(t, p2); env.Event != "vote_recorded" {
		t.Errorf("got %+v", env)
	}
	expectNone(t, p1)

	hub.BroadcastView("game-1", func(c *Client) *ServerEnvelope {
		if c.PlayerID == "p2" {
			return nil
		}
		return &ServerEnvelope{Type: ServerTypeState, Payload: map[string]interface{}{"viewer": c.PlayerID}}
	})
	if env := recv(t, p1); env.Payload["viewer"] != "p1" {
		t.Errorf("got %+v", env)
	}
	expectNone(t, p2)
}

func TestHub_RunStopsOnCancel(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	client := newTestClient(hub, "game-1", "p1")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-client.send; ok {
		t.Error("send channel should be closed on shutdown")
	}
	if count := hub.GetGameClientCount("game-1"); count != 0 {
		t.Errorf("expected no clients after shutdown, got %d", count)
	}
}

func TestHub_JoinLeaveAfterStop(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	client := newTestClient(hub, "game-1", "p1")
	if hub.join(client) {
		t.Error("join should fail once the hub has stopped")
	}
	left := make(chan struct{})
	go func() {
		hub.leave(client)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("leave blocked on a stopped hub")
	}
	// A removed client never receives late error replies.
	client.closed = true
	close(client.send)
	sendErrorToClient(client, "c1", "late")
}

func TestHub_PublishAfterStop(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	hub.Run(ctx)

	finished := make(chan struct{})
	go func() {
		env := &ServerEnvelope{Type: ServerTypeEvent, Event: "night_resolved"}
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.Broadcast("game-1", env)
			hub.SendToPlayer("game-1", "p1", env)
			hub.BroadcastView("game-1", func(c *Client) *ServerEnvelope { return env })
		}
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("publishing blocked on a stopped hub")
	}
}

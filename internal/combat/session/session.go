package session

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/skirmish/internal/combat/dataapi"
	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/storage"
	"github.com/louisbranch/skirmish/internal/errors"
	"github.com/louisbranch/skirmish/internal/platform/id"
)

// commandBuffer sizes the dispatch queue. Submitters block once a session
// falls this far behind.
const commandBuffer = 64

// Config assembles a combat session.
type Config struct {
	CampaignID string
	CombatID   string
	Store      storage.Store
	DataAPI    *dataapi.Client

	// Now, Seed and NewID are overridable for tests. Nil selects the
	// production implementations.
	Now   func() time.Time
	Seed  func() int64
	NewID func() (string, error)
}

// Session is the authority for one encounter. All state access and message
// handling runs on the Run goroutine; exported methods enqueue commands and
// are safe for concurrent use.
type Session struct {
	campaignID string
	combatID   string
	store      storage.Store
	data       *dataapi.Client
	now        func() time.Time
	seed       func() int64
	newID      func() (string, error)
	tracer     trace.Tracer

	commands chan command
	conns    map[string]*Conn

	// lastEmit floors event timestamps so emission order is never
	// contradicted by the clock.
	lastEmit     time.Time
	lastActivity atomic.Int64
	connCount    atomic.Int64
	turnTimer    *time.Timer
}

type command interface{ run(ctx context.Context, s *Session) }

type connectCmd struct {
	conn *Conn
	done chan struct{}
}

type disconnectCmd struct {
	connID string
	done   chan struct{}
}

type messageCmd struct {
	connID string
	raw    []byte
}

type snapshotCmd struct {
	reply chan DebugSnapshot
}

type turnTimerCmd struct{}

// New creates a session around an open store.
func New(cfg Config) *Session {
	s := &Session{
		campaignID: cfg.CampaignID,
		combatID:   cfg.CombatID,
		store:      cfg.Store,
		data:       cfg.DataAPI,
		now:        cfg.Now,
		seed:       cfg.Seed,
		newID:      cfg.NewID,
		tracer:     otel.Tracer("combat/session"),
		commands:   make(chan command, commandBuffer),
		conns:      make(map[string]*Conn),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.seed == nil {
		s.seed = func() int64 { return time.Now().UnixNano() }
	}
	if s.newID == nil {
		s.newID = id.NewID
	}
	s.touch()
	return s
}

// Run drives the session until ctx is canceled. It owns all session state;
// nothing else reads or writes the store while Run is live.
func (s *Session) Run(ctx context.Context) {
	defer s.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-s.commands:
			s.touch()
			cmd.run(ctx, s)
		}
	}
}

func (s *Session) shutdown() {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
	}
	for _, conn := range s.conns {
		_ = conn.transport.Close()
	}
	s.conns = map[string]*Conn{}
	if err := s.store.Close(); err != nil {
		log.Printf("session %s/%s: close store: %v", s.campaignID, s.combatID, err)
	}
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity reports when the session last processed a command.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// ConnectionCount reports attached clients, for eviction decisions.
func (s *Session) ConnectionCount() int {
	return int(s.connCount.Load())
}

// Connect attaches a transport and replays current state to it. The
// controlled-entity set is resolved against stored controllers when a player
// id is present.
func (s *Session) Connect(ctx context.Context, meta Metadata, transport Transport) (string, error) {
	connID, err := s.newID()
	if err != nil {
		return "", errors.Wrap(err, errors.CodeUnknown, "allocate connection id")
	}
	meta.ConnectedAt = s.now()
	cmd := connectCmd{
		conn: &Conn{ID: connID, Meta: meta, transport: transport},
		done: make(chan struct{}),
	}
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case <-cmd.done:
		return connID, nil
	case <-ctx.Done():
		return connID, ctx.Err()
	}
}

// Disconnect detaches a client and notifies the remaining ones.
func (s *Session) Disconnect(connID string) {
	cmd := disconnectCmd{connID: connID, done: make(chan struct{})}
	s.commands <- cmd
	<-cmd.done
}

// Submit enqueues one raw client message for serialized dispatch.
func (s *Session) Submit(connID string, raw []byte) {
	s.commands <- messageCmd{connID: connID, raw: raw}
}

// Snapshot returns the debug view served on the state endpoint.
func (s *Session) Snapshot(ctx context.Context) (DebugSnapshot, error) {
	cmd := snapshotCmd{reply: make(chan DebugSnapshot, 1)}
	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		return DebugSnapshot{}, ctx.Err()
	}
	select {
	case snap := <-cmd.reply:
		return snap, nil
	case <-ctx.Done():
		return DebugSnapshot{}, ctx.Err()
	}
}

func (c connectCmd) run(ctx context.Context, s *Session) {
	defer close(c.done)
	conn := c.conn
	s.resolveControlledEntities(ctx, conn)
	s.conns[conn.ID] = conn
	s.connCount.Store(int64(len(s.conns)))

	state, err := s.buildState(ctx, conn)
	if err != nil {
		log.Printf("session %s/%s: state sync on connect: %v", s.campaignID, s.combatID, err)
		return
	}
	if err := conn.send(s.event(EventStateSync, state, "")); err != nil {
		log.Printf("session %s/%s: send state sync: %v", s.campaignID, s.combatID, err)
	}
}

// resolveControlledEntities fills the connection's controlled set. When a
// player id is present the stored controllers win over the declared list.
func (s *Session) resolveControlledEntities(ctx context.Context, conn *Conn) {
	if conn.Meta.PlayerID == "" {
		return
	}
	entities, err := s.store.ListEntities(ctx)
	if err != nil {
		log.Printf("session %s/%s: resolve controlled entities: %v", s.campaignID, s.combatID, err)
		return
	}
	controller := domain.PlayerController(conn.Meta.PlayerID)
	var controlled []string
	for _, entity := range entities {
		if entity.Controller == controller {
			controlled = append(controlled, entity.ID)
		}
	}
	conn.Meta.ControlledEntityIDs = controlled
}

func (c disconnectCmd) run(_ context.Context, s *Session) {
	defer close(c.done)
	conn, ok := s.conns[c.connID]
	if !ok {
		return
	}
	delete(s.conns, c.connID)
	s.connCount.Store(int64(len(s.conns)))
	_ = conn.transport.Close()

	if conn.Meta.PlayerID != "" {
		s.broadcast(s.event(EventEntityUpdated, map[string]any{
			"playerId":  conn.Meta.PlayerID,
			"connected": false,
		}, ""))
	}
}

func (c messageCmd) run(ctx context.Context, s *Session) {
	conn, ok := s.conns[c.connID]
	if !ok {
		return
	}

	var msg Inbound
	if err := json.Unmarshal(c.raw, &msg); err != nil {
		s.sendError(conn, errors.Wrap(err, errors.CodeMalformedMessage, "malformed message"), "")
		return
	}

	ctx, span := s.tracer.Start(ctx, "session.dispatch",
		trace.WithAttributes(
			attribute.String("combat.campaign_id", s.campaignID),
			attribute.String("combat.combat_id", s.combatID),
			attribute.String("combat.message_type", msg.Type),
		))
	defer span.End()

	s.dispatch(ctx, conn, msg)
}

func (c snapshotCmd) run(ctx context.Context, s *Session) {
	c.reply <- s.buildDebugSnapshot(ctx)
}

func (turnTimerCmd) run(ctx context.Context, s *Session) {
	s.turnTimer = nil
	s.fireTurnTimer(ctx)
}

// scheduleTurnTimer arms (or, with zero duration, disarms) the turn alarm.
// Firing is routed back through the command queue so it never races a
// handler.
func (s *Session) scheduleTurnTimer(d time.Duration) {
	if s.turnTimer != nil {
		s.turnTimer.Stop()
		s.turnTimer = nil
	}
	if d <= 0 {
		return
	}
	s.turnTimer = time.AfterFunc(d, func() {
		s.commands <- turnTimerCmd{}
	})
}

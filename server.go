package ssache

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Server is a running ssache node: a Keyspace, its TCP listener, optional
// snapshot persistence, and an optional metrics registry.
type Server struct {
	keyspace *Keyspace
	cfg      *Config
	log      zerolog.Logger
	metrics  *Metrics

	listener net.Listener
}

// NewServer builds a Server around cfg. The keyspace starts empty; callers
// that want to resume from a snapshot call Load themselves before Run, or
// rely on the LOAD command over the wire.
func NewServer(cfg *Config, log zerolog.Logger, metrics *Metrics) *Server {
	return NewServerWithKeyspace(cfg, log, metrics, NewKeyspace())
}

// NewServerWithKeyspace builds a Server around an already-populated
// keyspace, letting callers load a snapshot before the first connection is
// accepted.
func NewServerWithKeyspace(cfg *Config, log zerolog.Logger, metrics *Metrics, ks *Keyspace) *Server {
	return &Server{
		keyspace: ks,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
	}
}

// Run listens on cfg.Port and serves connections, along with the scheduled
// save job and the replicator, until ctx is canceled. It returns once every
// background goroutine has exited.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.log.Info().Str("addr", addr).Msg("listening")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		return s.listener.Close()
	})

	g.Go(func() error {
		return s.acceptLoop(ctx)
	})

	if s.cfg.EnableSave {
		done := make(chan struct{})
		g.Go(func() error {
			runPeriodicSave(s.log, s.cfg.SnapshotPath, s.keyspace, s.cfg.saveInterval(), done)
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			close(done)
			return nil
		})
	}

	if s.cfg.EnableReplication && len(s.cfg.Replicas) > 0 {
		rep := newReplicator(s.keyspace, s.cfg.Replicas, s.cfg.replicationInterval(), s.log, s.metrics)
		g.Go(func() error {
			rep.run(ctx)
			return nil
		})
	}

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("accept failed")
			continue
		}
		go s.handleConnection(conn)
	}
}

// maxRequestLine is the largest request line, CRLF included, that a
// connection buffers. A longer line is answered with a malformed-frame
// error and the connection is closed.
const maxRequestLine = 4096

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	// No per-request deadlines: a connection may sit idle between commands
	// indefinitely (replicas and long-lived clients depend on this).
	reader := bufio.NewReaderSize(conn, maxRequestLine)
	for {
		raw, err := reader.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			conn.Write(replyError(ErrMalformedFrame))
			return
		}
		if err != nil {
			return
		}
		line := string(raw)

		cmd, err := ParseCommand(line)
		var reply []byte
		var quit bool
		if err != nil {
			reply = replyError(err)
		} else {
			reply, quit = dispatch(cmd, s.keyspace, s)
		}

		if s.metrics != nil && cmd != nil {
			s.metrics.commandsTotal.WithLabelValues(cmd.Verb).Inc()
		}

		if _, err := conn.Write(reply); err != nil {
			return
		}
		if quit {
			return
		}
	}
}

// dispatch executes a single parsed command against ks and returns the
// wire reply plus whether the connection should be closed afterward (QUIT).
// srv may be nil; SAVE/LOAD are no-ops without a configured snapshot path.
func dispatch(cmd *Command, ks *Keyspace, srv *Server) (reply []byte, quit bool) {
	switch cmd.Verb {
	case "PING":
		if len(cmd.Args) == 1 {
			return replyBulk(cmd.Args[0]), false
		}
		return replyPong(), false

	case "GET":
		v, ok := ks.Get(cmd.Args[0])
		if !ok {
			return replyNil(), false
		}
		return replyBulk(v), false

	case "SET":
		ks.Set(cmd.Args[0], cmd.Args[1])
		return replyOK(), false

	case "INCR":
		n, err := ks.Incr(cmd.Args[0])
		if err != nil {
			return replyError(err), false
		}
		return replyInt(n), false

	case "DECR":
		n, err := ks.Decr(cmd.Args[0])
		if err != nil {
			return replyError(err), false
		}
		return replyInt(n), false

	case "DEL":
		return replyBool(ks.Del(cmd.Args[0])), false

	case "EXISTS":
		return replyBool(ks.Exists(cmd.Args[0])), false

	case "TTL":
		ms, hasTTL, exists := ks.TTL(cmd.Args[0])
		if !exists {
			return replyInt(-2), false
		}
		if !hasTTL {
			return replyInt(-1), false
		}
		return replyInt(ms), false

	case "PERSIST":
		return replyBool(ks.Persist(cmd.Args[0])), false

	case "EXPIRE":
		ms, err := parseTTLMillis(cmd.Args[1])
		if err != nil {
			return replyError(err), false
		}
		ks.SetTTL(cmd.Args[0], time.Duration(ms)*time.Millisecond)
		return replyOK(), false

	case "DBSIZE":
		return replyInt(int64(ks.Len())), false

	case "SAVE":
		if srv == nil || srv.cfg.SnapshotPath == "" {
			return replyOK(), false
		}
		start := time.Now()
		if err := Save(srv.cfg.SnapshotPath, ks); err != nil {
			return replyErrorMsg(err.Error()), false
		}
		if srv.metrics != nil {
			srv.metrics.saveDuration.Observe(time.Since(start).Seconds())
		}
		return replyOK(), false

	case "LOAD":
		if srv == nil || srv.cfg.SnapshotPath == "" {
			return replyOK(), false
		}
		if err := Load(srv.cfg.SnapshotPath, ks); err != nil {
			return replyErrorMsg(err.Error()), false
		}
		return replyOK(), false

	case "QUIT":
		return replyOK(), true

	default:
		return replyError(ErrUnknownCommand), false
	}
}
